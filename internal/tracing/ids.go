package tracing

import (
	"crypto/rand"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// IDGenerator creates trace and span IDs. Implementations must be safe for
// concurrent use and must never return the zero ID.
type IDGenerator interface {
	NewTraceID() trace.TraceID
	NewSpanID() trace.SpanID
}

// randomIDGenerator draws trace IDs from random UUIDs and span IDs from
// crypto/rand.
type randomIDGenerator struct{}

func (randomIDGenerator) NewTraceID() trace.TraceID {
	return trace.TraceID(uuid.New())
}

func (randomIDGenerator) NewSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}
