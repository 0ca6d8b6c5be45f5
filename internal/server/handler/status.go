package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/alanyoungcy/dockside/internal/service"
)

// OverviewSource reports the running game's summary.
type OverviewSource interface {
	Overview(ctx context.Context) service.Overview
}

// StatusHandler serves the backend status for dashboards.
type StatusHandler struct {
	Mode      string
	StartedAt time.Time
	game      OverviewSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, game OverviewSource) *StatusHandler {
	return &StatusHandler{Mode: mode, StartedAt: startedAt, game: game}
}

// GetStatus responds with the mode, uptime and game overview.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
		"game":           h.game.Overview(r.Context()),
	})
}
