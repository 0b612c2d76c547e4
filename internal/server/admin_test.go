package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/telepipe/internal/instrumentation"
	"github.com/teemow/telepipe/internal/logging"
)

func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	config := instrumentation.DefaultConfig()
	config.ServiceName = "test-service"
	config.Export.Enabled = false
	config.Logging.Level = "info"

	provider, err := instrumentation.NewProvider(context.Background(), config,
		instrumentation.WithSink(logging.DiscardSink{}))
	require.NoError(t, err)
	return provider
}

func TestNewAdminServer(t *testing.T) {
	tests := []struct {
		name        string
		config      AdminServerConfig
		expectError bool
		wantAddr    string
	}{
		{
			name:     "valid config",
			config:   AdminServerConfig{Addr: ":9191", Provider: createTestProvider(t)},
			wantAddr: ":9191",
		},
		{
			name:     "default addr",
			config:   AdminServerConfig{Provider: createTestProvider(t)},
			wantAddr: DefaultAdminAddr,
		},
		{
			name:        "nil provider",
			config:      AdminServerConfig{Addr: ":9090"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewAdminServer(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("NewAdminServer() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAdminServer() unexpected error: %v", err)
			}
			if server.Addr() != tt.wantAddr {
				t.Errorf("Addr() = %q, want %q", server.Addr(), tt.wantAddr)
			}
		})
	}
}

func TestAdminServer_Metrics(t *testing.T) {
	provider := createTestProvider(t)
	provider.Logger().Info(context.Background(), "counted", nil, "")

	server, err := NewAdminServer(AdminServerConfig{Provider: provider})
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `telepipe_app_logs_total{log_level="INFO"} 1`)
	assert.Contains(t, string(body), "telepipe_app_log_history_size 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestAdminServer_StartAndShutdown(t *testing.T) {
	server, err := NewAdminServer(AdminServerConfig{Addr: "127.0.0.1:0", Provider: createTestProvider(t)})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(server.Addr(), ":0")
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	require.NoError(t, <-errCh)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "readiness fails once shutdown begins")
}
