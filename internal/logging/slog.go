package logging

import (
	"log/slog"
	"net/http"
	"net/url"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyComponent = "component"
	KeyOperation = "operation"
	KeySource    = "source"
	KeyData      = "data"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyStatus    = "status"
	KeyError     = "error"
)

// RedactedValue replaces sensitive header values and URL credentials.
const RedactedValue = "[redacted]"

// sensitiveHeaders are never logged verbatim.
var sensitiveHeaders = []string{
	"Authorization",
	"Cookie",
	"Set-Cookie",
	"Proxy-Authorization",
	"X-Api-Key",
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Component returns a slog attribute for the component name.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Source returns a slog attribute for the entry source.
func Source(source string) slog.Attr {
	return slog.String(KeySource, source)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// RedactHeaders returns a copy of h with credential-bearing headers replaced
// by RedactedValue.
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := h.Clone()
	for _, name := range sensitiveHeaders {
		if _, ok := out[http.CanonicalHeaderKey(name)]; ok {
			out.Set(name, RedactedValue)
		}
	}
	return out
}

// SanitizeURL removes user credentials and masks query values so a URL can
// be logged. Unparseable input is returned as RedactedValue.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return RedactedValue
	}
	return SanitizedURL(u)
}

// SanitizedURL is SanitizeURL for an already parsed URL. u is not modified.
func SanitizedURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	if clean.User != nil {
		clean.User = url.User(RedactedValue)
	}
	if clean.RawQuery != "" {
		q := clean.Query()
		for k := range q {
			q.Set(k, "x")
		}
		clean.RawQuery = q.Encode()
	}
	return clean.String()
}
