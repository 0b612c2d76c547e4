package metrics

import (
	"net/url"
	"strings"
)

// Cardinality management for metric labels.
//
// Raw request URLs carry IDs and query strings, and using them as label
// values creates one series per request. NormalizeURL collapses them into a
// route-like template.

// UnknownLabel is used when a label value cannot be derived.
const UnknownLabel = "unknown"

// NormalizeURL reduces a request URL to scheme, host and path, with the
// query, fragment and credentials removed and ID-like path segments replaced
// by ":id".
//
// Example:
//
//	NormalizeURL("https://api.example.com/api/users/42?expand=true")  // "https://api.example.com/api/users/:id"
//	NormalizeURL("/api/orders/3f2c0a4e-8d5b-4c7e-9a1f-2b6d8e0c4a71")  // "/api/orders/:id"
//	NormalizeURL("")                                                  // "unknown"
func NormalizeURL(raw string) string {
	if raw == "" {
		return UnknownLabel
	}
	u, err := url.Parse(raw)
	if err != nil {
		return UnknownLabel
	}

	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		if isIDSegment(seg) {
			segments[i] = ":id"
		}
	}
	path := strings.Join(segments, "/")

	if u.Host == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + u.Host + path
}

// isIDSegment reports whether a path segment looks like an identifier:
// all digits, a UUID, or a long hex string.
func isIDSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if isDigits(seg) {
		return true
	}
	if len(seg) == 36 && strings.Count(seg, "-") == 4 && isHex(strings.ReplaceAll(seg, "-", "")) {
		return true
	}
	return len(seg) >= 16 && isHex(seg)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
