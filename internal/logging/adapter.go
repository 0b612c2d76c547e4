package logging

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
)

// Sink receives every accepted log entry. Implementations must be safe for
// concurrent use and must not call back into the Logger.
type Sink interface {
	Write(LogEntry)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(LogEntry)

// Write implements Sink.
func (f SinkFunc) Write(e LogEntry) { f(e) }

// DiscardSink drops every entry.
type DiscardSink struct{}

// Write implements Sink.
func (DiscardSink) Write(LogEntry) {}

// MultiSink writes every entry to each of its sinks in order.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(e LogEntry) {
	for _, s := range m {
		s.Write(e)
	}
}

// SlogSink forwards entries to an slog.Logger.
// The entry timestamp is carried by the slog record.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Write implements Sink.
func (s *SlogSink) Write(e LogEntry) {
	attrs := make([]slog.Attr, 0, 4)
	attrs = append(attrs, Source(e.Source))
	if len(e.Data) > 0 {
		attrs = append(attrs, slog.Attr{Key: KeyData, Value: slog.GroupValue(e.Data.SlogAttrs()...)})
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String(KeyTraceID, e.TraceID), slog.String(KeySpanID, e.SpanID))
	}
	s.logger.LogAttrs(context.Background(), e.Level.slogLevel(), e.Message, attrs...)
}

// Logger returns the underlying slog.Logger for direct access when needed.
func (s *SlogSink) Logger() *slog.Logger {
	return s.logger
}

// ZapSink forwards entries to a zap.Logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a ZapSink. If logger is nil, a production logger is
// built; if that fails, a no-op logger is used.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	return &ZapSink{logger: logger}
}

// Write implements Sink.
func (s *ZapSink) Write(e LogEntry) {
	fields := make([]zap.Field, 0, 4)
	fields = append(fields, zap.String(KeySource, e.Source))
	if len(e.Data) > 0 {
		fields = append(fields, zap.Any(KeyData, e.Data.Interface()))
	}
	if e.TraceID != "" {
		fields = append(fields, zap.String(KeyTraceID, e.TraceID), zap.String(KeySpanID, e.SpanID))
	}

	switch e.Level {
	case LevelDebug:
		s.logger.Debug(e.Message, fields...)
	case LevelWarn:
		s.logger.Warn(e.Message, fields...)
	case LevelError:
		s.logger.Error(e.Message, fields...)
	default:
		s.logger.Info(e.Message, fields...)
	}
}

// Sync flushes buffered zap output.
func (s *ZapSink) Sync() error {
	return s.logger.Sync()
}
