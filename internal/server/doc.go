// Package server provides the admin HTTP server of the telemetry pipeline.
//
// The admin server listens on its own port and exposes:
//   - /metrics: Prometheus exposition of the metrics aggregator
//   - /healthz, /readyz, /healthz/detailed: probes, the latter with export
//     pipeline statistics
//   - /logs: the in-memory log history as JSON (DELETE clears it)
//   - /logs/level: the minimum log level (GET, PUT {"level":"debug"})
//   - /logs/stream: a websocket pushing the full history after every entry
package server
