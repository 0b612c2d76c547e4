package logging

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/tracing"
)

// DefaultHistorySize is the number of entries kept in the log history.
const DefaultHistorySize = 100

// levelChangeSource is the source recorded on the entry SetLevel emits.
const levelChangeSource = "LoggerService"

// Logger is an in-memory structured logger. It keeps a bounded history of
// accepted entries, writes every entry to a Sink and pushes the whole
// history to subscribers after each change.
//
// Logger is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
	minLevel Level
	enabled  bool
	sink     Sink
	now      func() time.Time
	observer func(Level)

	// seq numbers history changes; it is guarded by mu.
	seq uint64

	subMu  sync.RWMutex
	subs   []subscriber
	nextID uint64

	// Delivery state. One goroutine at a time fans snapshots out; others
	// leave their snapshot in pending for it. Guarded by pubMu.
	pubMu      sync.Mutex
	publishing bool
	pending    []LogEntry
	hasPending bool
	pendingSeq uint64
}

type subscriber struct {
	id uint64
	fn func([]LogEntry)
}

// Option configures a Logger.
type Option func(*Logger)

// WithCapacity sets the history size. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithLevel sets the minimum accepted level.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.minLevel = level }
}

// WithEnabled turns logging on or off globally.
func WithEnabled(enabled bool) Option {
	return func(l *Logger) { l.enabled = enabled }
}

// WithSink sets the sink entries are written to. A nil sink discards.
func WithSink(s Sink) Option {
	return func(l *Logger) {
		if s == nil {
			s = DiscardSink{}
		}
		l.sink = s
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithObserver registers a hook called with the level of every accepted
// entry. It is used to count log events per level.
func WithObserver(fn func(Level)) Option {
	return func(l *Logger) { l.observer = fn }
}

// New creates a Logger. By default it is enabled, accepts INFO and above,
// keeps DefaultHistorySize entries and writes to a ConsoleSink on stderr.
func New(opts ...Option) *Logger {
	l := &Logger{
		capacity: DefaultHistorySize,
		minLevel: LevelInfo,
		enabled:  true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sink == nil {
		l.sink = NewStderrConsoleSink()
	}
	l.entries = make([]LogEntry, 0, l.capacity)
	return l
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(ctx context.Context, message string, data attr.Map, source string) {
	l.Log(ctx, LevelDebug, message, data, source)
}

// Info logs at LevelInfo.
func (l *Logger) Info(ctx context.Context, message string, data attr.Map, source string) {
	l.Log(ctx, LevelInfo, message, data, source)
}

// Warn logs at LevelWarn.
func (l *Logger) Warn(ctx context.Context, message string, data attr.Map, source string) {
	l.Log(ctx, LevelWarn, message, data, source)
}

// Error logs at LevelError.
func (l *Logger) Error(ctx context.Context, message string, data attr.Map, source string) {
	l.Log(ctx, LevelError, message, data, source)
}

// Log records an entry at the given level. The call is a no-op when logging
// is disabled or the level is below the minimum; dropped entries do not
// reach the history, the sink or subscribers. An empty source is recorded as
// DefaultSource. When ctx carries an active span its IDs are attached.
func (l *Logger) Log(ctx context.Context, level Level, message string, data attr.Map, source string) {
	if level >= LevelNone {
		return
	}

	l.mu.Lock()
	if !l.enabled || level < l.minLevel {
		l.mu.Unlock()
		return
	}

	if source == "" {
		source = DefaultSource
	}
	entry := LogEntry{
		Timestamp: l.now(),
		Level:     level,
		Message:   message,
		Data:      data.Clone(),
		Source:    source,
	}
	if ctx != nil {
		entry.TraceID = tracing.TraceIDFromContext(ctx)
		entry.SpanID = tracing.SpanIDFromContext(ctx)
	}

	if len(l.entries) >= l.capacity {
		// Evict the oldest entry, keeping the backing array.
		n := copy(l.entries, l.entries[1:])
		l.entries[n] = LogEntry{}
		l.entries = l.entries[:n]
	}
	l.entries = append(l.entries, entry)
	l.seq++
	seq := l.seq
	snapshot := l.snapshotLocked()
	sink := l.sink
	observer := l.observer
	l.mu.Unlock()

	sink.Write(entry)
	if observer != nil {
		observer(level)
	}
	l.publish(seq, snapshot)
}

// History returns a copy of the current history, oldest first.
func (l *Logger) History() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Len returns the number of entries in the history.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Capacity returns the maximum history size.
func (l *Logger) Capacity() int {
	return l.capacity
}

// Clear empties the history and pushes the empty snapshot to subscribers.
func (l *Logger) Clear() {
	l.mu.Lock()
	for i := range l.entries {
		l.entries[i] = LogEntry{}
	}
	l.entries = l.entries[:0]
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	l.publish(seq, []LogEntry{})
}

// SetLevel changes the minimum level at runtime and logs the change at
// LevelInfo. The change entry is itself subject to the new level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()

	l.Info(context.Background(), "Log level changed", attr.Map{
		"newLevel": attr.StringValue(level.String()),
	}, levelChangeSource)
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minLevel
}

// SetEnabled turns logging on or off.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Enabled reports whether logging is on.
func (l *Logger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// SetObserver replaces the per-entry level hook. Nil removes it.
func (l *Logger) SetObserver(fn func(Level)) {
	l.mu.Lock()
	l.observer = fn
	l.mu.Unlock()
}

func (l *Logger) snapshotLocked() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
