package logging

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	if WithComponent(slog.Default(), "pipeline") == nil {
		t.Error("WithComponent returned nil")
	}
}

func TestAttrHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"component", Component("export"), KeyComponent, "export"},
		{"operation", Operation("flush"), KeyOperation, "flush"},
		{"source", Source("HTTP Interceptor"), KeySource, "HTTP Interceptor"},
		{"status", Status("ok"), KeyStatus, "ok"},
		{"error", Err(errors.New("boom")), KeyError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr_Nil(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty", attr.Key)
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "session=abc")
	h.Set("Accept", "application/json")

	out := RedactHeaders(h)

	if got := out.Get("Authorization"); got != RedactedValue {
		t.Errorf("Authorization = %q, want %q", got, RedactedValue)
	}
	if got := out.Get("Cookie"); got != RedactedValue {
		t.Errorf("Cookie = %q, want %q", got, RedactedValue)
	}
	if got := out.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
	if got := h.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("input header modified: %q", got)
	}
	if RedactHeaders(nil) != nil {
		t.Error("RedactHeaders(nil) should be nil")
	}
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.example.com/api/users", "https://api.example.com/api/users"},
		{"https://api.example.com/x?token=abc&page=2", "https://api.example.com/x?page=x&token=x"},
		{"://bad", RedactedValue},
	}
	for _, tt := range tests {
		if got := SanitizeURL(tt.in); got != tt.want {
			t.Errorf("SanitizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeURL("https://bob:pw@api.example.com/x"); strings.Contains(got, "bob") || strings.Contains(got, "pw") {
		t.Errorf("SanitizeURL kept credentials: %q", got)
	}
	if SanitizedURL(nil) != "" {
		t.Error("SanitizedURL(nil) should be empty")
	}
}
