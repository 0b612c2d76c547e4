package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/teemow/telepipe/internal/export"
	"github.com/teemow/telepipe/internal/httpinstr"
	"github.com/teemow/telepipe/internal/logging"
	"github.com/teemow/telepipe/internal/metrics"
	"github.com/teemow/telepipe/internal/tracing"
)

// PrometheusNamespace prefixes every metric served by the Prometheus registry.
const PrometheusNamespace = "telepipe"

// Option customizes a Provider beyond its Config.
type Option func(*providerOptions)

type providerOptions struct {
	sink     logging.Sink
	exporter export.Exporter
}

// WithSink overrides the log sink selected by Config.Logging.Sink.
func WithSink(sink logging.Sink) Option {
	return func(o *providerOptions) { o.sink = sink }
}

// WithExporter overrides the exporter selected by Config.Export.Exporter.
func WithExporter(exporter export.Exporter) Option {
	return func(o *providerOptions) { o.exporter = exporter }
}

// Provider wires the logger, tracer, metrics aggregator and export pipeline
// together.
type Provider struct {
	config      Config
	logger      *logging.Logger
	sink        logging.Sink
	aggregator  *metrics.Aggregator
	instruments *metrics.Instruments
	tracer      *tracing.Tracer
	pipeline    *export.Pipeline
	registry    *prometheus.Registry
}

// NewProvider creates a provider with the given configuration. The export
// pipeline is created but not started; call Start.
func NewProvider(ctx context.Context, config Config, opts ...Option) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	sink := o.sink
	if sink == nil {
		var err error
		sink, err = newSink(config.Logging.Sink)
		if err != nil {
			return nil, err
		}
	}

	p := &Provider{
		config:     config,
		sink:       sink,
		aggregator: metrics.NewAggregator(metrics.WithEnabled(config.Metrics.Enabled)),
	}
	p.instruments = metrics.NewInstruments(p.aggregator)
	p.logger = logging.New(
		logging.WithCapacity(config.Logging.HistorySize),
		logging.WithLevel(config.LogLevel()),
		logging.WithEnabled(config.Logging.Enabled),
		logging.WithSink(sink),
		logging.WithObserver(func(level logging.Level) {
			p.instruments.RecordLog(level.String())
		}),
	)
	p.instruments.RegisterLogHistorySize(p.logger.Len)

	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(
		metrics.NewCollector(p.aggregator, PrometheusNamespace),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter := o.exporter
	if exporter == nil && config.Export.Enabled {
		var err error
		exporter, err = newExporter(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize exporter: %w", err)
		}
	}

	var processor tracing.SpanProcessor
	if exporter != nil {
		var source export.MetricsSource
		if config.Metrics.Enabled {
			source = p.aggregator
		}
		p.pipeline = export.NewPipeline(exporter, source, p.logger, export.Options{
			Interval:      config.Metrics.Interval,
			MaxQueueSpans: config.Export.MaxQueueSpans,
			ExportTimeout: config.Export.Timeout,
		})
		processor = p.pipeline
	}

	p.tracer = tracing.NewTracer(processor,
		tracing.WithLogger(p.logger),
		tracing.WithDebug(config.Debug),
		tracing.WithEnabled(config.Tracing.Enabled),
		tracing.WithSampleRate(config.Tracing.SampleRate),
	)

	otel.SetTextMapPropagator(propagation.TraceContext{})

	return p, nil
}

// newSink creates the log sink named by the configuration.
func newSink(name string) (logging.Sink, error) {
	switch name {
	case SinkConsole, "":
		return logging.NewStderrConsoleSink(), nil
	case SinkJSON:
		return logging.NewSlogSink(slog.New(slog.NewJSONHandler(os.Stderr, nil))), nil
	case SinkZap:
		return logging.NewZapSink(nil), nil
	default:
		return nil, fmt.Errorf("%w: unsupported log sink %q", ErrInvalidConfig, name)
	}
}

// newExporter creates the exporter named by the configuration. Returns nil
// for ExporterNone.
func newExporter(ctx context.Context, config Config) (export.Exporter, error) {
	switch config.Export.Exporter {
	case ExporterNone:
		return nil, nil

	case ExporterOTLP:
		res, err := newResource(ctx, config)
		if err != nil {
			return nil, err
		}
		otlpConfig := export.OTLPConfig{
			Protocol:       config.Export.Protocol,
			Insecure:       config.Export.Insecure,
			Headers:        config.Export.Headers,
			ServiceVersion: config.ServiceVersion,
		}
		if config.Tracing.Enabled {
			otlpConfig.TracesEndpoint = config.Tracing.Endpoint
		}
		if config.Metrics.Enabled {
			otlpConfig.MetricsEndpoint = config.Metrics.Endpoint
		}
		exp, err := export.NewOTLPExporter(ctx, otlpConfig, res)
		if err != nil {
			return nil, err
		}
		return exp, nil

	case ExporterStdout:
		res, err := newResource(ctx, config)
		if err != nil {
			return nil, err
		}
		exp, err := export.NewStdoutExporter(os.Stdout, res, config.ServiceVersion)
		if err != nil {
			return nil, err
		}
		return exp, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, config.Export.Exporter)
	}
}

func newResource(ctx context.Context, config Config) (*resource.Resource, error) {
	return export.NewResource(ctx, export.ResourceConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Environment:    config.Environment,
	})
}

// Start launches the export pipeline loop. It is a no-op when export is
// disabled.
func (p *Provider) Start(ctx context.Context) error {
	if p.pipeline == nil {
		return nil
	}
	return p.pipeline.Start(ctx)
}

// Config returns the configuration the provider was built with.
func (p *Provider) Config() Config {
	return p.config
}

// Logger returns the structured logger.
func (p *Provider) Logger() *logging.Logger {
	return p.logger
}

// Tracer returns the span tracer.
func (p *Provider) Tracer() *tracing.Tracer {
	return p.tracer
}

// Aggregator returns the metrics aggregator.
func (p *Provider) Aggregator() *metrics.Aggregator {
	return p.aggregator
}

// Instruments returns the predefined application instruments.
func (p *Provider) Instruments() *metrics.Instruments {
	return p.instruments
}

// Pipeline returns the export pipeline, or nil when export is disabled.
func (p *Provider) Pipeline() *export.Pipeline {
	return p.pipeline
}

// Registry returns the Prometheus registry serving the aggregator.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// HTTPClient returns an http.Client whose requests are traced, logged and
// counted.
func (p *Provider) HTTPClient(opts ...httpinstr.Option) *http.Client {
	opts = append([]httpinstr.Option{httpinstr.WithPropagator(otel.GetTextMapPropagator())}, opts...)
	return httpinstr.NewClient(nil, p.tracer, p.instruments, p.logger, opts...)
}

// ApplyRuntimeConfig applies the settings that may change while running:
// the log level and whether logging is enabled.
func (p *Provider) ApplyRuntimeConfig(config Config) {
	p.logger.SetEnabled(config.Logging.Enabled)
	if level := config.LogLevel(); level != p.logger.Level() {
		p.logger.SetLevel(level)
	}
}

// Shutdown gracefully shuts down the provider, flushing any pending telemetry.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	if p.pipeline != nil {
		if err := p.pipeline.Shutdown(ctx); err != nil && !errors.Is(err, export.ErrPipelineClosed) {
			errs = append(errs, fmt.Errorf("failed to shutdown export pipeline: %w", err))
		}
	}

	if zs, ok := p.sink.(*logging.ZapSink); ok {
		// Syncing stderr fails on some platforms; nothing is lost when it does.
		_ = zs.Sync()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
