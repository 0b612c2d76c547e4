// Package logging provides the in-memory structured logger used by telepipe.
//
// A Logger keeps a bounded history of accepted entries (100 by default),
// drops entries below its minimum level, writes every accepted entry to a
// Sink and pushes a copy of the whole history to its subscribers.
//
// # Usage
//
//	logger := logging.New(logging.WithLevel(logging.LevelDebug))
//	sub := logger.Subscribe(func(history []logging.LogEntry) {
//	    render(history)
//	})
//	defer sub.Cancel()
//
//	logger.Info(ctx, "user loaded", attr.Map{"id": attr.IntValue(42)}, "UserService")
//
// When ctx carries an active span (see package tracing) the entry records
// its trace and span IDs.
//
// # Sinks
//
//   - ConsoleSink: colored single-line output for terminals
//   - SlogSink: forwards to a *slog.Logger, typically with a JSON handler
//   - ZapSink: forwards to a *zap.Logger
//   - DiscardSink: drops everything
//
// # Security Considerations
//
// Request URLs and headers pass through SanitizeURL and RedactHeaders before
// they are logged so credentials never reach the history or a sink.
package logging
