package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teemow/telepipe/internal/logging"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// LevelRequest is the body of PUT /logs/level and the response of
// GET /logs/level.
type LevelRequest struct {
	Level string `json:"level"`
}

// ErrorResponse is returned for rejected admin requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LogsHandler exposes the structured logger's history over HTTP.
type LogsHandler struct {
	logger *logging.Logger
}

// NewLogsHandler creates a LogsHandler for logger.
func NewLogsHandler(logger *logging.Logger) *LogsHandler {
	return &LogsHandler{logger: logger}
}

// RegisterLogsEndpoints registers the log endpoints on the given mux.
func (h *LogsHandler) RegisterLogsEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("GET /logs", h.handleHistory)
	mux.HandleFunc("DELETE /logs", h.handleClear)
	mux.HandleFunc("GET /logs/level", h.handleGetLevel)
	mux.HandleFunc("PUT /logs/level", h.handleSetLevel)
	mux.HandleFunc("GET /logs/stream", h.handleStream)
}

func (h *LogsHandler) handleHistory(w http.ResponseWriter, _ *http.Request) {
	entries := h.logger.History()
	if entries == nil {
		entries = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LogsHandler) handleClear(w http.ResponseWriter, _ *http.Request) {
	h.logger.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *LogsHandler) handleGetLevel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LevelRequest{Level: h.logger.Level().String()})
}

func (h *LogsHandler) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	var req LevelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if !knownLevel(req.Level) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "level must be one of debug, info, warn, error, none"})
		return
	}

	level := logging.ParseLevel(req.Level)
	if level != h.logger.Level() {
		h.logger.SetLevel(level)
	}
	writeJSON(w, http.StatusOK, LevelRequest{Level: level.String()})
}

// handleStream upgrades to a websocket and pushes the full history as a
// JSON array on connect and after every accepted entry.
func (h *LogsHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Failed to upgrade log stream", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// latest holds at most one pending snapshot. A newer snapshot replaces
	// an unsent one, so a slow client skips ahead to the current history.
	latest := make(chan []logging.LogEntry, 1)
	sub := h.logger.Subscribe(func(entries []logging.LogEntry) {
		for {
			select {
			case latest <- entries:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	})
	defer sub.Cancel()

	// The read loop only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, h.logger.History()); err != nil {
		return
	}
	for {
		select {
		case entries := <-latest:
			if err := writeSnapshot(conn, entries); err != nil {
				slog.Debug("Log stream client write failed", "error", err)
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, entries []logging.LogEntry) error {
	if entries == nil {
		entries = []logging.LogEntry{}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(entries)
}

func knownLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "error", "none":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
