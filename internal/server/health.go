package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teemow/telepipe/internal/export"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker answers the admin server's health endpoints. The process
// is live as long as it can answer; it is ready until it is marked
// otherwise or begins shutting down.
type HealthChecker struct {
	ready        atomic.Bool
	shuttingDown atomic.Bool
	pipeline     *export.Pipeline // nil when no pipeline is attached
	started      time.Time
}

// NewHealthChecker returns a checker that reports ready. pipeline may be
// nil, in which case the detailed report carries no export counters.
func NewHealthChecker(pipeline *export.Pipeline) *HealthChecker {
	h := &HealthChecker{pipeline: pipeline, started: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady overrides the readiness flag.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the readiness flag. It does not consider shutdown.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// SetShuttingDown is called once the admin server starts draining. It is
// not reversible.
func (h *HealthChecker) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
	Export *export.Stats     `json:"export,omitempty"`
}

// evaluate runs the readiness checks. status is the overall verdict;
// shutdown takes precedence over the ready flag.
func (h *HealthChecker) evaluate() (status string, checks map[string]string) {
	checks = map[string]string{
		"ready":    healthStatusOK,
		"shutdown": healthStatusOK,
	}
	status = healthStatusOK
	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
		status = healthStatusNotReady
	}
	if h.shuttingDown.Load() {
		checks["shutdown"] = healthStatusShuttingDown
		status = healthStatusShuttingDown
	}
	return status, checks
}

func writeHealth(w http.ResponseWriter, status string, body any) {
	w.Header().Set("Content-Type", "application/json")
	if status == healthStatusOK {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// LivenessHandler serves /healthz. It always answers 200.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, healthStatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler serves /readyz: 200 while ready, 503 otherwise. The
// response status is "not ready" for any failing check so callers only
// need to match one value; the checks map says which one failed.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.evaluate()
		resp := HealthResponse{Status: healthStatusOK, Checks: checks}
		if status != healthStatusOK {
			resp.Status = healthStatusNotReady
		}
		writeHealth(w, status, resp)
	})
}

// DetailedHealthHandler serves /healthz/detailed with uptime, the
// readiness checks and the export pipeline counters.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.evaluate()
		resp := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.started).Truncate(time.Second).String(),
			Checks: checks,
		}
		if h.pipeline != nil {
			stats := h.pipeline.Stats()
			resp.Export = &stats
		}
		writeHealth(w, status, resp)
	})
}

// RegisterHealthEndpoints mounts the three health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}
