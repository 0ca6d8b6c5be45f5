package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dockside/internal/service"
)

// MovementService defines the methods that the movement handler requires.
type MovementService interface {
	MoveLeft(ctx context.Context, id string) (service.MoveResult, error)
	MoveRight(ctx context.Context, id string) (service.MoveResult, error)
}

// MovementHandler serves move commands. Clamped and throttled moves are
// successful responses; the outcome field says what happened.
type MovementHandler struct {
	moves  MovementService
	logger *slog.Logger
}

// NewMovementHandler creates a MovementHandler.
func NewMovementHandler(moves MovementService, logger *slog.Logger) *MovementHandler {
	return &MovementHandler{moves: moves, logger: logger}
}

// MoveLeft handles POST /api/sessions/{id}/move/left
func (h *MovementHandler) MoveLeft(w http.ResponseWriter, r *http.Request) {
	h.move(w, commandContext(r), h.moves.MoveLeft)
}

// MoveRight handles POST /api/sessions/{id}/move/right
func (h *MovementHandler) MoveRight(w http.ResponseWriter, r *http.Request) {
	h.move(w, commandContext(r), h.moves.MoveRight)
}

func (h *MovementHandler) move(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (service.MoveResult, error)) {
	res, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "move", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
