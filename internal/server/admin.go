package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/telepipe/internal/instrumentation"
)

const (
	// DefaultAdminAddr is the default address for the admin server.
	DefaultAdminAddr = ":9090"

	// DefaultReadHeaderTimeout is the default read header timeout for the admin server.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the default idle timeout for the admin server.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// AdminServerConfig holds configuration for the admin server.
type AdminServerConfig struct {
	// Addr is the address to bind the admin server to (e.g., ":9090").
	Addr string

	// Provider supplies the logger, the Prometheus registry and the export
	// pipeline statistics.
	Provider *instrumentation.Provider
}

// AdminServer serves Prometheus metrics, health probes and the log
// endpoints on a dedicated port, away from application traffic.
type AdminServer struct {
	httpServer *http.Server
	health     *HealthChecker
	addr       string

	// cancelBase ends the context every request context derives from,
	// which closes hijacked log streams that http.Server.Shutdown ignores.
	cancelBase context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
}

// NewAdminServer creates a new admin server with the given configuration.
func NewAdminServer(config AdminServerConfig) (*AdminServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultAdminAddr
	}

	if config.Provider == nil {
		return nil, fmt.Errorf("instrumentation provider is required for admin server")
	}

	s := &AdminServer{
		health: NewHealthChecker(config.Provider.Pipeline()),
		addr:   config.Addr,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(config.Provider.Registry(), promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}))
	s.health.RegisterHealthEndpoints(mux)
	NewLogsHandler(config.Provider.Logger()).RegisterLogsEndpoints(mux)

	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancelBase = cancel
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	return s, nil
}

// Handler returns the admin HTTP handler.
func (s *AdminServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Health returns the health checker backing /healthz and /readyz.
func (s *AdminServer) Health() *HealthChecker {
	return s.health
}

// Start starts the admin server in a blocking manner. It returns nil after
// a graceful Shutdown.
// Call this in a goroutine if you need non-blocking operation.
func (s *AdminServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("starting admin server", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the admin server. Open log streams are
// closed with it.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	slog.Info("shutting down admin server")
	s.cancelBase()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound address once the server is listening, otherwise
// the configured address.
func (s *AdminServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
