// Package instrumentation wires the telemetry pipeline together from
// configuration.
//
// A Provider owns the structured logger, the span tracer, the metrics
// aggregator with its predefined instruments, a Prometheus registry serving
// the aggregator, and the export pipeline shipping spans and metric
// snapshots to the configured exporter.
//
// # Configuration
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables, then command line flags (applied by cmd):
//   - TELEPIPE_LOGGING_ENABLED, TELEPIPE_LOG_LEVEL, TELEPIPE_LOG_SINK, TELEPIPE_LOG_HISTORY_SIZE
//   - TELEPIPE_TRACING_ENABLED, OTEL_EXPORTER_OTLP_TRACES_ENDPOINT, OTEL_TRACES_SAMPLER_ARG
//   - TELEPIPE_METRICS_ENABLED, OTEL_EXPORTER_OTLP_METRICS_ENDPOINT, OTEL_METRIC_EXPORT_INTERVAL (ms)
//   - OTEL_ENABLED, TELEPIPE_EXPORTER (otlp, stdout, none), OTEL_EXPORTER_OTLP_PROTOCOL, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION, TELEPIPE_ENV, TELEPIPE_DEBUG
//
// ConfigWatcher reloads the YAML file on change and applies the log level
// without a restart.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	if err := provider.Start(ctx); err != nil {
//		return err
//	}
//	defer provider.Shutdown(context.Background())
//
//	client := provider.HTTPClient()
//	resp, err := client.Get("https://api.example.com/api/users")
package instrumentation
