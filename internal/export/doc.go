// Package export batches ended spans and metric snapshots and ships them to
// an Exporter.
//
// A Pipeline is a tracing.SpanProcessor. Ended spans are queued; the queue
// is flushed when it crosses a span count or approximate CBOR size
// threshold, and on every metric interval tick together with a fresh
// metrics snapshot. Delivery is best effort: when the exporter fails the
// batch is dropped and a single WARN entry is logged. Export errors never
// reach the code that produced the telemetry.
//
// Exporters are built on the OpenTelemetry Go exporters:
//
//   - NewOTLPExporter: OTLP over HTTP/protobuf or gRPC
//   - NewStdoutExporter: pretty printed JSON, for development
//   - NopExporter, ExporterFunc and MultiExporter for wiring and tests
package export
