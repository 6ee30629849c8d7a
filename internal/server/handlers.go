package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/pulse/internal/session"
	"github.com/desertthunder/pulse/internal/shared"
)

// Transport names recorded on sessions.
const (
	TransportSSE = "sse"
	TransportWS  = "ws"
)

// SSEHandler opens a session per request and streams it as Server-Sent Events.
type SSEHandler struct {
	manager *session.Manager
	opts    StreamOptions
	logger  *log.Logger
}

func NewSSEHandler(manager *session.Manager, opts StreamOptions, logger *log.Logger) *SSEHandler {
	return &SSEHandler{manager: manager, opts: opts, logger: logger}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var conn *SSEConn
	s, err := h.manager.Open(r.Context(), TransportSSE, func(id string) (session.Conn, error) {
		c, err := NewSSEConn(w, r, id, h.opts)
		if err != nil {
			return nil, err
		}
		conn = c
		return c, nil
	})
	if err != nil {
		h.logger.Warn("failed to open stream", "transport", TransportSSE, "err", err)
		http.Error(w, err.Error(), openErrorStatus(err))
		return
	}

	logger := shared.WithLogger(h.logger, "session", s.ID(), "transport", TransportSSE)
	logger.Info("stream connected", "remote", r.RemoteAddr)
	conn.Serve()
	logger.Debug("stream disconnected")
}

// WSHandler opens a session per request and streams it over a WebSocket.
type WSHandler struct {
	manager  *session.Manager
	upgrader *websocket.Upgrader
	opts     StreamOptions
	logger   *log.Logger
}

func NewWSHandler(manager *session.Manager, opts StreamOptions, logger *log.Logger) *WSHandler {
	return &WSHandler{
		manager:  manager,
		upgrader: NewUpgrader(opts.AllowOrigin),
		opts:     opts,
		logger:   logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var conn *WSConn
	s, err := h.manager.Open(r.Context(), TransportWS, func(id string) (session.Conn, error) {
		c, err := NewWSConn(w, r, id, h.upgrader, h.opts)
		if err != nil {
			return nil, err
		}
		conn = c
		return c, nil
	})
	if err != nil {
		h.logger.Warn("failed to open stream", "transport", TransportWS, "err", err)
		// the upgrader answers the client itself when the handshake fails
		if conn != nil {
			conn.reject(err)
		}
		return
	}

	logger := shared.WithLogger(h.logger, "session", s.ID(), "transport", TransportWS)
	logger.Info("stream connected", "remote", r.RemoteAddr)
	conn.Serve()
	logger.Debug("stream disconnected")
}

func openErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SessionsHandler inspects and cancels live sessions by id.
//
// Implements [Handler] so its method-qualified routes are registered together.
type SessionsHandler struct {
	manager *session.Manager
	logger  *log.Logger
}

func NewSessionsHandler(manager *session.Manager, logger *log.Logger) *SessionsHandler {
	return &SessionsHandler{manager: manager, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SessionsHandler) Routes() []string {
	return []string{"GET /sessions", "GET /sessions/{id}", "DELETE /sessions/{id}"}
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch {
	case id == "":
		writeJSON(w, http.StatusOK, h.manager.Snapshot())
	case r.Method == http.MethodDelete:
		if !h.manager.Teardown(id) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Info("session cancelled", "session", id, "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	default:
		s, ok := h.manager.Lookup(id)
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.Info())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
