package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Level colors for console output.
var levelColors = map[Level]lipgloss.Color{
	LevelDebug: lipgloss.Color("#6c757d"),
	LevelInfo:  lipgloss.Color("#0dcaf0"),
	LevelWarn:  lipgloss.Color("#ffc107"),
	LevelError: lipgloss.Color("#dc3545"),
}

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConsoleSink writes one line per entry:
//
//	[2025-01-02T15:04:05.000Z] [INFO] [HTTP Interceptor]: message {k=v}
//
// The bracketed prefix is rendered in a bold level color when the writer is
// a terminal.
type ConsoleSink struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[Level]lipgloss.Style
	color  bool
}

// NewConsoleSink creates a ConsoleSink writing to w. Colors are enabled
// only when w is a terminal.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return newConsoleSink(w, isTerminal(w))
}

// NewStderrConsoleSink creates a ConsoleSink writing to os.Stderr.
func NewStderrConsoleSink() *ConsoleSink {
	return NewConsoleSink(os.Stderr)
}

func newConsoleSink(w io.Writer, color bool) *ConsoleSink {
	renderer := lipgloss.NewRenderer(w)
	styles := make(map[Level]lipgloss.Style, len(levelColors))
	for level, c := range levelColors {
		styles[level] = renderer.NewStyle().Foreground(c).Bold(true)
	}
	return &ConsoleSink{w: w, styles: styles, color: color}
}

// Write implements Sink.
func (s *ConsoleSink) Write(e LogEntry) {
	prefix := fmt.Sprintf("[%s] [%s] [%s]:", e.Timestamp.Format(consoleTimeFormat), e.Level, e.Source)
	if s.color {
		if style, ok := s.styles[e.Level]; ok {
			prefix = style.Render(prefix)
		}
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if len(e.Data) > 0 {
		b.WriteByte(' ')
		b.WriteString(e.Data.String())
	}
	if e.TraceID != "" {
		b.WriteString(" trace_id=")
		b.WriteString(e.TraceID)
		b.WriteString(" span_id=")
		b.WriteString(e.SpanID)
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, b.String())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
