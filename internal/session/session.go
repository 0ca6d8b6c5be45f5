package session

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/movement"
	"github.com/alanyoungcy/dockside/internal/trading"
)

// Session is the per-player context: it owns the position controller and
// references the dock the player trades at. Commands on one session are
// serialized by Do.
type Session struct {
	id      string
	loginAt time.Time

	mu         sync.Mutex
	status     domain.SessionStatus
	controller *movement.Controller
	dock       *trading.Dock
}

// ID returns the session identifier accepted at login.
func (s *Session) ID() string { return s.id }

// LoginAt returns when the session was admitted.
func (s *Session) LoginAt() time.Time { return s.loginAt }

// Dock returns the dock this session trades at.
func (s *Session) Dock() *trading.Dock { return s.dock }

// Do runs fn with exclusive access to the session's controller and dock.
func (s *Session) Do(fn func(c *movement.Controller, d *trading.Dock) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.controller, s.dock)
}

// MoveLeft attempts a single left move.
func (s *Session) MoveLeft(ctx context.Context) movement.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.MoveLeft(ctx)
}

// MoveRight attempts a single right move.
func (s *Session) MoveRight(ctx context.Context) movement.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.MoveRight(ctx)
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	ID       string               `json:"session_id"`
	Status   domain.SessionStatus `json:"status"`
	DockID   string               `json:"dock_id"`
	Position movement.Position    `json:"position"`
	LoginAt  time.Time            `json:"login_at"`
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.id,
		Status:   s.status,
		DockID:   s.dock.ID(),
		Position: s.controller.Position(),
		LoginAt:  s.loginAt,
	}
}

// Status returns whether the session is online.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st domain.SessionStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}
