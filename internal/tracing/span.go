package tracing

import (
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/telepipe/internal/attr"
)

// Status is the outcome recorded on a span.
type Status struct {
	Code        codes.Code `json:"code"`
	Description string     `json:"description,omitempty"`
}

// Exception is an error recorded on a span.
type Exception struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// SpanContext identifies a span within a trace.
type SpanContext struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
}

// IsValid reports whether both IDs are set.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// SpanData is an immutable snapshot of a span.
type SpanData struct {
	Name         string         `json:"name"`
	TraceID      trace.TraceID  `json:"trace_id"`
	SpanID       trace.SpanID   `json:"span_id"`
	ParentSpanID trace.SpanID   `json:"parent_span_id"`
	RemoteParent bool           `json:"remote_parent,omitempty"`
	Kind         trace.SpanKind `json:"kind"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Attributes   attr.Map       `json:"attributes,omitempty"`
	Status       Status         `json:"status"`
	Exceptions   []Exception    `json:"exceptions,omitempty"`
}

// HasParent reports whether the span is a child.
func (d SpanData) HasParent() bool {
	return d.ParentSpanID.IsValid()
}

// Duration returns the elapsed time of an ended span, zero for open spans.
func (d SpanData) Duration() time.Duration {
	if d.EndTime.IsZero() {
		return 0
	}
	return d.EndTime.Sub(d.StartTime)
}

// Span is a timed record of one traced operation. All methods are safe for
// concurrent use and become no-ops once the span has ended. A nil *Span is a
// valid non-recording span.
type Span struct {
	tracer    *Tracer
	recording bool

	mu           sync.Mutex
	name         string
	sc           SpanContext
	parent       trace.SpanID
	remoteParent bool
	kind         trace.SpanKind
	start        time.Time
	end          time.Time
	attrs        attr.Map
	status       Status
	exceptions   []Exception
	ended        bool
}

// SpanContext returns the span's IDs.
func (s *Span) SpanContext() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return s.sc
}

// Name returns the span name.
func (s *Span) Name() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// IsRecording reports whether the span accepts mutations: it was created by
// an enabled tracer and has not ended.
func (s *Span) IsRecording() bool {
	if s == nil || !s.recording {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// SetAttributes merges m into the span attributes; the last write per key
// wins.
func (s *Span) SetAttributes(m attr.Map) {
	if s == nil || !s.recording || len(m) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for k, v := range m {
		s.attrs[k] = v
	}
}

// SetAttribute sets a single attribute.
func (s *Span) SetAttribute(key string, v attr.Value) {
	s.SetAttributes(attr.Map{key: v})
}

// RecordException appends err to the span's exceptions. The span stays
// open. A nil error is ignored.
func (s *Span) RecordException(err error) {
	if s == nil || !s.recording || err == nil {
		return
	}
	now := s.tracer.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.exceptions = append(s.exceptions, Exception{
		Type:    ErrorType(err),
		Message: err.Error(),
		Time:    now,
	})
}

// SetStatus sets the span status, overwriting any previous one. The
// description is kept only for codes.Error.
func (s *Span) SetStatus(code codes.Code, description string) {
	if s == nil || !s.recording {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if code != codes.Error {
		description = ""
	}
	s.status = Status{Code: code, Description: description}
}

// End closes the span and hands its snapshot to the tracer's processor.
// Only the first call has an effect.
func (s *Span) End() {
	if s == nil || !s.recording {
		return
	}
	now := s.tracer.now()

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		s.tracer.reportDoubleEnd(s)
		return
	}
	s.ended = true
	s.end = now
	data := s.snapshotLocked()
	s.mu.Unlock()

	s.tracer.finish(data)
}

// Snapshot returns the current state of the span. EndTime is zero while the
// span is open.
func (s *Span) Snapshot() SpanData {
	if s == nil {
		return SpanData{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Span) snapshotLocked() SpanData {
	var exceptions []Exception
	if len(s.exceptions) > 0 {
		exceptions = make([]Exception, len(s.exceptions))
		copy(exceptions, s.exceptions)
	}
	return SpanData{
		Name:         s.name,
		TraceID:      s.sc.TraceID,
		SpanID:       s.sc.SpanID,
		ParentSpanID: s.parent,
		RemoteParent: s.remoteParent,
		Kind:         s.kind,
		StartTime:    s.start,
		EndTime:      s.end,
		Attributes:   s.attrs.Clone(),
		Status:       s.status,
		Exceptions:   exceptions,
	}
}

// ErrorType returns the Go type name of err, used as the exception type.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}
