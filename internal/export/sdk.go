package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// OTLP transport protocols.
const (
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolGRPC         = "grpc"
)

var (
	// ErrUnknownProtocol is returned for an unsupported OTLP protocol.
	ErrUnknownProtocol = errors.New("unknown OTLP protocol")

	// ErrSpanExport and ErrMetricExport mark which part of a batch failed.
	// A Pipeline treats an error carrying neither as a failure of both.
	ErrSpanExport   = errors.New("failed to export spans")
	ErrMetricExport = errors.New("failed to export metrics")
)

// SDKExporter ships batches through OpenTelemetry SDK exporters. Either
// side may be nil, in which case that telemetry kind is discarded.
type SDKExporter struct {
	spans    sdktrace.SpanExporter
	metrics  sdkmetric.Exporter
	resource *resource.Resource
	scope    instrumentation.Scope
}

// NewSDKExporter wraps existing SDK exporters. res may be nil.
func NewSDKExporter(spans sdktrace.SpanExporter, metrics sdkmetric.Exporter, res *resource.Resource, version string) *SDKExporter {
	if res == nil {
		res = resource.Empty()
	}
	return &SDKExporter{
		spans:    spans,
		metrics:  metrics,
		resource: res,
		scope:    instrumentationScope(version),
	}
}

// Export implements Exporter. Spans and metrics are sent independently and
// each failure is wrapped in ErrSpanExport or ErrMetricExport.
func (e *SDKExporter) Export(ctx context.Context, batch *Batch) error {
	if batch.Empty() {
		return nil
	}
	var errs []error
	if e.spans != nil && len(batch.Spans) > 0 {
		if err := e.spans.ExportSpans(ctx, ReadOnlySpans(batch.Spans, e.resource, e.scope)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrSpanExport, err))
		}
	}
	if e.metrics != nil && len(batch.Metrics) > 0 {
		if err := e.metrics.Export(ctx, ResourceMetrics(batch.Metrics, e.resource, e.scope)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrMetricExport, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown implements Exporter.
func (e *SDKExporter) Shutdown(ctx context.Context) error {
	var errs []error
	if e.spans != nil {
		if err := e.spans.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown span exporter: %w", err))
		}
	}
	if e.metrics != nil {
		if err := e.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metric exporter: %w", err))
		}
	}
	return errors.Join(errs...)
}

// OTLPConfig configures NewOTLPExporter.
type OTLPConfig struct {
	// Protocol is ProtocolHTTPProtobuf (default) or ProtocolGRPC.
	Protocol string
	// TracesEndpoint and MetricsEndpoint are full URLs, for example
	// http://localhost:4318/v1/traces. An empty endpoint disables that
	// telemetry kind.
	TracesEndpoint  string
	MetricsEndpoint string
	Insecure        bool
	Headers         map[string]string
	// ServiceVersion is recorded as the instrumentation scope version.
	ServiceVersion string
}

// NewOTLPExporter creates an SDKExporter backed by the OTLP exporters for
// the configured protocol.
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig, res *resource.Resource) (*SDKExporter, error) {
	protocol := strings.ToLower(cfg.Protocol)
	if protocol == "" {
		protocol = ProtocolHTTPProtobuf
	}
	if protocol != ProtocolHTTPProtobuf && protocol != ProtocolGRPC {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, cfg.Protocol)
	}

	if cfg.Insecure {
		// SECURITY WARNING: spans carry URLs and error messages
		slog.Warn("OTLP insecure transport enabled - telemetry may contain sensitive metadata, use only for development",
			"component", "export",
			"protocol", protocol,
		)
	}

	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)
	if cfg.TracesEndpoint != "" {
		spans, err = newOTLPSpanExporter(ctx, protocol, cfg)
		if err != nil {
			return nil, err
		}
	}
	if cfg.MetricsEndpoint != "" {
		metrics, err = newOTLPMetricExporter(ctx, protocol, cfg)
		if err != nil {
			if spans != nil {
				if shutdownErr := spans.Shutdown(ctx); shutdownErr != nil {
					err = errors.Join(err, fmt.Errorf("failed to shutdown span exporter during cleanup: %w", shutdownErr))
				}
			}
			return nil, err
		}
	}

	return NewSDKExporter(spans, metrics, res, cfg.ServiceVersion), nil
}

func newOTLPSpanExporter(ctx context.Context, protocol string, cfg OTLPConfig) (sdktrace.SpanExporter, error) {
	switch protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpointURL(cfg.TracesEndpoint),
			otlptracegrpc.WithCompressor("gzip"),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC trace exporter: %w", err)
		}
		return exp, nil

	default:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(cfg.TracesEndpoint),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP trace exporter: %w", err)
		}
		return exp, nil
	}
}

func newOTLPMetricExporter(ctx context.Context, protocol string, cfg OTLPConfig) (sdkmetric.Exporter, error) {
	switch protocol {
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(cfg.MetricsEndpoint),
			otlpmetricgrpc.WithCompressor("gzip"),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC metrics exporter: %w", err)
		}
		return exp, nil

	default:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint),
			otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP metrics exporter: %w", err)
		}
		return exp, nil
	}
}

// NewStdoutExporter creates an SDKExporter that pretty prints spans and
// metrics to w. Development only.
func NewStdoutExporter(w io.Writer, res *resource.Resource, version string) (*SDKExporter, error) {
	// DEVELOPMENT ONLY WARNING
	slog.Warn("stdout exporter enabled - for development/debugging only, not for production",
		"component", "export",
	)

	spans, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
	}
	return NewSDKExporter(spans, metrics, res, version), nil
}
