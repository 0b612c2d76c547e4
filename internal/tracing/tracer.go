package tracing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/telepipe/internal/attr"
)

// tracerSource is the source recorded on developer warnings.
const tracerSource = "SpanTracer"

// SpanProcessor receives every ended span exactly once.
type SpanProcessor interface {
	OnEnd(SpanData)
}

// SpanProcessorFunc adapts a function to the SpanProcessor interface.
type SpanProcessorFunc func(SpanData)

// OnEnd implements SpanProcessor.
func (f SpanProcessorFunc) OnEnd(d SpanData) { f(d) }

// Logger is the subset of the structured logger the tracer uses for
// developer warnings.
type Logger interface {
	Warn(ctx context.Context, message string, data attr.Map, source string)
}

// Tracer creates spans and hands ended spans to its SpanProcessor.
type Tracer struct {
	processor  SpanProcessor
	logger     Logger
	ids        IDGenerator
	now        func() time.Time
	enabled    bool
	debug      bool
	sampleRate float64

	doubleEnds atomic.Int64
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithLogger sets the logger used for developer warnings.
func WithLogger(l Logger) Option {
	return func(t *Tracer) { t.logger = l }
}

// WithDebug enables developer warnings, such as ending a span twice.
func WithDebug(debug bool) Option {
	return func(t *Tracer) { t.debug = debug }
}

// WithEnabled turns tracing on or off. A disabled tracer returns
// non-recording spans.
func WithEnabled(enabled bool) Option {
	return func(t *Tracer) { t.enabled = enabled }
}

// WithIDGenerator overrides trace and span ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(t *Tracer) {
		if g != nil {
			t.ids = g
		}
	}
}

// WithClock overrides the time source for span timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSampleRate records the configured sample rate. The rate is reported by
// SampleRate but not applied: every span is processed.
func WithSampleRate(rate float64) Option {
	return func(t *Tracer) { t.sampleRate = rate }
}

// NewTracer creates an enabled Tracer. A nil processor discards ended spans.
func NewTracer(processor SpanProcessor, opts ...Option) *Tracer {
	t := &Tracer{
		processor:  processor,
		ids:        randomIDGenerator{},
		now:        time.Now,
		enabled:    true,
		sampleRate: 1.0,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enabled reports whether the tracer records spans.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// SampleRate returns the configured sample rate.
func (t *Tracer) SampleRate() float64 {
	return t.sampleRate
}

// DoubleEnds returns how many times End was called on an already ended span.
func (t *Tracer) DoubleEnds() int64 {
	return t.doubleEnds.Load()
}

// StartOption configures a single span.
type StartOption func(*startConfig)

type startConfig struct {
	kind    trace.SpanKind
	newRoot bool
}

// WithSpanKind sets the span kind. The default is trace.SpanKindInternal.
func WithSpanKind(kind trace.SpanKind) StartOption {
	return func(c *startConfig) { c.kind = kind }
}

// WithNewRoot starts a new trace even when ctx carries an active span.
func WithNewRoot() StartOption {
	return func(c *startConfig) { c.newRoot = true }
}

// Start creates a span and returns a context carrying it as the active span.
// When ctx already carries an active span the new span becomes its child;
// otherwise it continues a remote parent set with ContextWithRemoteParent or
// starts a new trace.
func (t *Tracer) Start(ctx context.Context, name string, attrs attr.Map, opts ...StartOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	span := t.StartSpan(ctx, name, attrs, opts...)
	if !span.recording {
		return ctx, span
	}
	return ContextWithSpan(ctx, span), span
}

// StartSpan creates a span parented like Start but does not activate it.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs attr.Map, opts ...StartOption) *Span {
	if !t.enabled {
		return &Span{tracer: t, name: name}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := startConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}

	span := &Span{
		tracer:    t,
		recording: true,
		name:      name,
		kind:      cfg.kind,
		start:     t.now(),
		attrs:     attrs.Clone(),
	}
	if span.attrs == nil {
		span.attrs = attr.Map{}
	}

	if !cfg.newRoot {
		if parent := SpanFromContext(ctx); parent != nil && parent.recording {
			psc := parent.SpanContext()
			span.sc.TraceID = psc.TraceID
			span.parent = psc.SpanID
		} else if remote, ok := remoteParentFromContext(ctx); ok {
			span.sc.TraceID = remote.TraceID
			span.parent = remote.SpanID
			span.remoteParent = true
		}
	}
	if !span.sc.TraceID.IsValid() {
		span.sc.TraceID = t.ids.NewTraceID()
	}
	span.sc.SpanID = t.ids.NewSpanID()
	return span
}

// WithActiveSpan runs fn with span as the active span of the context passed
// to it. The caller's ctx is not modified, so the previously active span is
// back in effect as soon as fn returns or panics.
func (t *Tracer) WithActiveSpan(ctx context.Context, span *Span, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if span == nil || !span.recording {
		return fn(ctx)
	}
	return fn(ContextWithSpan(ctx, span))
}

func (t *Tracer) finish(d SpanData) {
	if t.processor != nil {
		t.processor.OnEnd(d)
	}
}

func (t *Tracer) reportDoubleEnd(s *Span) {
	t.doubleEnds.Add(1)
	if !t.debug || t.logger == nil {
		return
	}
	sc := s.SpanContext()
	t.logger.Warn(context.Background(), fmt.Sprintf("Span %q ended more than once", s.Name()), attr.Map{
		"traceId": attr.StringValue(sc.TraceID.String()),
		"spanId":  attr.StringValue(sc.SpanID.String()),
	}, tracerSource)
}
