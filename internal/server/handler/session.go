package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dockside/internal/service"
)

// SessionService defines the methods that the session handler requires.
type SessionService interface {
	Login(ctx context.Context, id string) (service.StatusView, error)
	Logout(ctx context.Context, id string) (service.StatusView, error)
	Status(ctx context.Context, id string) (service.StatusView, error)
	Online() []service.StatusView
}

// SessionHandler serves login, logout and session status.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type loginRequest struct {
	SessionID string `json:"session_id"`
}

// Login admits a session id.
// POST /api/sessions
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.sessions.Login(r.Context(), req.SessionID)
	if err != nil {
		writeServiceError(w, r, h.logger, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListSessions returns every online session.
// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.sessions.Online()})
}

// GetSession returns one session's status and position text.
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Logout takes a session offline.
// DELETE /api/sessions/{id}
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Logout(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
