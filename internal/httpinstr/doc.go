// Package httpinstr instruments outbound HTTP calls.
//
// Transport wraps an http.RoundTripper. Every request gets one client span,
// a request and a response (or error) log entry, and a request counter and
// duration observation. The W3C traceparent header is injected so the
// callee can continue the trace.
//
//	client := httpinstr.NewClient(nil, tracer, instruments, logger)
//	resp, err := client.Get("https://api.example.com/api/users")
package httpinstr
