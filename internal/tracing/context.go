package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type activeSpanKey struct{}

type remoteParentKey struct{}

// ContextWithSpan returns a copy of ctx with span as the active span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, activeSpanKey{}, span)
}

// SpanFromContext returns the active span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(activeSpanKey{}).(*Span)
	return span
}

// TraceIDFromContext returns the hex trace ID of the active span, or "".
func TraceIDFromContext(ctx context.Context) string {
	span := SpanFromContext(ctx)
	if span == nil || !span.recording {
		return ""
	}
	return span.sc.TraceID.String()
}

// SpanIDFromContext returns the hex span ID of the active span, or "".
func SpanIDFromContext(ctx context.Context) string {
	span := SpanFromContext(ctx)
	if span == nil || !span.recording {
		return ""
	}
	return span.sc.SpanID.String()
}

// OTelSpanContext converts span into an OpenTelemetry span context marked
// as sampled. A nil or non-recording span yields an invalid span context.
func OTelSpanContext(span *Span) trace.SpanContext {
	if span == nil || !span.recording {
		return trace.SpanContext{}
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    span.sc.TraceID,
		SpanID:     span.sc.SpanID,
		TraceFlags: trace.FlagsSampled,
	})
}

// ContextWithOTelSpan returns ctx carrying the span as an OpenTelemetry span
// context, as expected by propagation.TextMapPropagator.Inject.
func ContextWithOTelSpan(ctx context.Context, span *Span) context.Context {
	sc := OTelSpanContext(span)
	if !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithSpanContext(ctx, sc)
}

// ContextWithRemoteParent records a parent received from another process,
// typically extracted from a traceparent header. Spans started from the
// returned context without an active local span continue that trace.
func ContextWithRemoteParent(ctx context.Context, sc trace.SpanContext) context.Context {
	if !sc.IsValid() {
		return ctx
	}
	return context.WithValue(ctx, remoteParentKey{}, SpanContext{
		TraceID: sc.TraceID(),
		SpanID:  sc.SpanID(),
	})
}

func remoteParentFromContext(ctx context.Context) (SpanContext, bool) {
	sc, ok := ctx.Value(remoteParentKey{}).(SpanContext)
	return sc, ok && sc.IsValid()
}
