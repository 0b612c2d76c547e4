package httpinstr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/logging"
	"github.com/teemow/telepipe/internal/metrics"
	"github.com/teemow/telepipe/internal/tracing"
)

// Source is the source recorded on every entry the transport logs.
const Source = "HTTP Interceptor"

// MaxLoggedBodySize is the largest request body included in the request
// log entry. Larger bodies are omitted.
const MaxLoggedBodySize = 4 << 10

// StatusError describes a response rejected by WithFailOnStatus. It is
// recorded on the span and logged; the response itself is still returned to
// the caller.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s", e.Status)
}

// Option configures a Transport.
type Option func(*Transport)

// WithFailOnStatus treats responses for which fn returns true as failures
// for telemetry purposes.
func WithFailOnStatus(fn func(statusCode int) bool) Option {
	return func(t *Transport) { t.failOnStatus = fn }
}

// WithPropagation enables or disables traceparent injection. Enabled by
// default.
func WithPropagation(enabled bool) Option {
	return func(t *Transport) {
		if enabled {
			t.propagator = propagation.TraceContext{}
		} else {
			t.propagator = nil
		}
	}
}

// WithPropagator replaces the W3C trace context propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Transport) { t.propagator = p }
}

// Transport is an instrumented http.RoundTripper.
type Transport struct {
	base         http.RoundTripper
	tracer       *tracing.Tracer
	instruments  *metrics.Instruments
	logger       *logging.Logger
	failOnStatus func(int) bool
	propagator   propagation.TextMapPropagator
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
// A nil tracer or logger disables that signal; instruments may be nil.
func NewTransport(base http.RoundTripper, tracer *tracing.Tracer, instruments *metrics.Instruments, logger *logging.Logger, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if tracer == nil {
		tracer = tracing.NewTracer(nil, tracing.WithEnabled(false))
	}
	if logger == nil {
		logger = logging.New(logging.WithEnabled(false), logging.WithSink(logging.DiscardSink{}))
	}
	t := &Transport{
		base:        base,
		tracer:      tracer,
		instruments: instruments,
		logger:      logger,
		propagator:  propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewClient returns an http.Client using an instrumented transport.
func NewClient(base http.RoundTripper, tracer *tracing.Tracer, instruments *metrics.Instruments, logger *logging.Logger, opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(base, tracer, instruments, logger, opts...)}
}

// call holds the per-request state shared by the success and failure paths.
type call struct {
	ctx    context.Context
	span   *tracing.Span
	method string
	rawURL string
	// logURL has credentials and query values masked.
	logURL string
	start  time.Time
}

func (c *call) duration() string {
	return fmt.Sprintf("%dms", time.Since(c.start).Milliseconds())
}

// RoundTrip implements http.RoundTripper. Errors from the wrapped transport
// are returned unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	logURL := logging.SanitizedURL(req.URL)
	spanURL := requestURL(req.URL)

	ctx, span := t.tracer.Start(req.Context(), method+" "+spanURL, attr.Map{
		"http.method": attr.StringValue(method),
		"http.url":    attr.StringValue(spanURL),
		"http.target": attr.StringValue(req.URL.RequestURI()),
	}, tracing.WithSpanKind(trace.SpanKindClient))

	c := &call{
		ctx:    ctx,
		span:   span,
		method: method,
		rawURL: req.URL.String(),
		logURL: logURL,
		start:  time.Now(),
	}

	t.logger.Info(ctx, "HTTP Request: "+method+" "+logURL, requestData(req, method, logURL), Source)

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(ctx)
	if t.propagator != nil {
		t.propagator.Inject(tracing.ContextWithOTelSpan(ctx, span), propagation.HeaderCarrier(out.Header))
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.fail(c, 0, "", err)
		return nil, err
	}

	span.SetAttribute("http.status_code", attr.IntValue(resp.StatusCode))
	if resp.ContentLength >= 0 {
		span.SetAttribute("http.response_content_length", attr.Int64Value(resp.ContentLength))
	}

	if t.failOnStatus != nil && t.failOnStatus(resp.StatusCode) {
		t.fail(c, resp.StatusCode, http.StatusText(resp.StatusCode), &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
		return resp, nil
	}

	span.SetStatus(codes.Ok, "")
	span.End()

	t.logger.Info(ctx, "HTTP Response: "+method+" "+logURL, attr.Map{
		"duration": attr.StringValue(c.duration()),
		"status":   attr.IntValue(resp.StatusCode),
		"url":      attr.StringValue(logURL),
	}, Source)
	t.instruments.RecordHTTPRequest(method, c.rawURL, resp.StatusCode, time.Since(c.start))
	return resp, nil
}

func (t *Transport) fail(c *call, statusCode int, statusText string, err error) {
	c.span.RecordException(err)
	c.span.SetAttributes(attr.Map{
		"error.type":    attr.StringValue(tracing.ErrorType(err)),
		"error.message": attr.StringValue(err.Error()),
	})
	c.span.SetStatus(codes.Error, err.Error())
	c.span.End()

	t.logger.Error(c.ctx, "HTTP Error: "+c.method+" "+c.logURL, attr.Map{
		"duration":   attr.StringValue(c.duration()),
		"status":     attr.IntValue(statusCode),
		"statusText": attr.StringValue(statusText),
		"message":    attr.StringValue(err.Error()),
		"url":        attr.StringValue(c.logURL),
	}, Source)
	t.instruments.RecordHTTPRequest(c.method, c.rawURL, statusCode, time.Since(c.start))
}

// requestURL is the URL as sent on the wire: userinfo travels in the
// Authorization header, not the request line, so it is left out.
func requestURL(u *url.URL) string {
	clean := *u
	clean.User = nil
	return clean.String()
}

func requestData(req *http.Request, method, logURL string) attr.Map {
	data := attr.Map{
		"method":  attr.StringValue(method),
		"url":     attr.StringValue(logURL),
		"headers": attr.Any(logging.RedactHeaders(req.Header)),
	}
	if body, ok := peekBody(req); ok {
		data["body"] = attr.StringValue(body)
	}
	return data
}

// peekBody reads a replayable request body without consuming it. Bodies
// larger than MaxLoggedBodySize are skipped.
func peekBody(req *http.Request) (string, bool) {
	if req.GetBody == nil || req.ContentLength > MaxLoggedBodySize {
		return "", false
	}
	rc, err := req.GetBody()
	if err != nil {
		return "", false
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, MaxLoggedBodySize+1))
	if err != nil || len(b) > MaxLoggedBodySize || len(b) == 0 {
		return "", false
	}
	return string(b), true
}
