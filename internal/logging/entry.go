package logging

import (
	"time"

	"github.com/teemow/telepipe/internal/attr"
)

// DefaultSource is recorded when a log call does not name its source.
const DefaultSource = "Unknown"

// LogEntry is a single accepted log event. Entries are never modified after
// they are created; Data must be treated as read-only.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Data      attr.Map  `json:"data,omitempty"`
	Source    string    `json:"source"`

	// TraceID and SpanID correlate the entry with the span that was active
	// in the context passed to the logger. Empty when no span was active.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}
