// Package tracing implements the span tracer: span lifecycle, parent/child
// relationships and the active span carried by context.Context.
//
// A span is open from Start until End. End is idempotent; the first call
// hands an immutable SpanData snapshot to the tracer's SpanProcessor, later
// calls do nothing. The active span travels with the context, so goroutines
// that interleave never observe each other's spans:
//
//	ctx, span := tracer.Start(ctx, "load dashboard", nil)
//	defer span.End()
//
//	err := tracer.WithActiveSpan(ctx, child, func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
//
// Spans bridge to OpenTelemetry through OTelSpanContext so W3C trace context
// headers can be injected into outbound requests.
package tracing
