// Package session admits player identifiers and keeps the per-session context
// each command runs against.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/movement"
	"github.com/alanyoungcy/dockside/internal/trading"
)

// DefaultMaxIDLength is the longest session identifier Login accepts.
const DefaultMaxIDLength = 20

// DefaultDockID names the dock sessions trade at when none is configured.
const DefaultDockID = "harbor"

// Config controls admission and dock assignment.
type Config struct {
	// MaxIDLength is measured in characters, not bytes.
	MaxIDLength int
	Movement    movement.Config
	// DockID names the shared dock, or the prefix of per-session docks.
	DockID string
	// SharedDock gives every session the same dock. When false each session
	// gets a private dock built on login.
	SharedDock bool
}

// DefaultConfig returns a shared-dock configuration with the stock world.
func DefaultConfig() Config {
	return Config{
		MaxIDLength: DefaultMaxIDLength,
		Movement:    movement.DefaultConfig(),
		DockID:      DefaultDockID,
		SharedDock:  true,
	}
}

// DockFactory builds a dock with the given id.
type DockFactory func(dockID string) (*trading.Dock, error)

// ObserverFactory returns the movement observer for a new session. It may
// return nil.
type ObserverFactory func(sessionID string) movement.Observer

// Option customises a Manager.
type Option func(*Manager)

// WithClock sets the clock handed to every position controller.
func WithClock(c movement.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithObserverFactory sets how each session's movement observer is built.
func WithObserverFactory(f ObserverFactory) Option {
	return func(m *Manager) { m.observers = f }
}

// Manager tracks online sessions.
type Manager struct {
	cfg       Config
	newDock   DockFactory
	clock     movement.Clock
	observers ObserverFactory

	shared *trading.Dock

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager validates cfg and, for shared docks, builds the dock up front.
func NewManager(cfg Config, newDock DockFactory, opts ...Option) (*Manager, error) {
	if cfg.MaxIDLength <= 0 {
		return nil, fmt.Errorf("session: max id length must be positive, got %d", cfg.MaxIDLength)
	}
	if cfg.DockID == "" {
		return nil, fmt.Errorf("session: dock id is required")
	}
	if err := cfg.Movement.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if newDock == nil {
		return nil, fmt.Errorf("session: dock factory is required")
	}

	m := &Manager{
		cfg:      cfg,
		newDock:  newDock,
		clock:    movement.SystemClock{},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.SharedDock {
		d, err := newDock(cfg.DockID)
		if err != nil {
			return nil, fmt.Errorf("session: build shared dock: %w", err)
		}
		m.shared = d
	}
	return m, nil
}

// ValidateID reports whether id is an acceptable session identifier.
func (m *Manager) ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("session: empty id: %w", domain.ErrInvalidSessionID)
	}
	if n := utf8.RuneCountInString(id); n > m.cfg.MaxIDLength {
		return fmt.Errorf("session: id has %d characters, max %d: %w", n, m.cfg.MaxIDLength, domain.ErrInvalidSessionID)
	}
	return nil
}

// Login admits id. Logging in with an id that is already online returns the
// existing session and created == false.
func (m *Manager) Login(ctx context.Context, id string) (sess *Session, created bool, err error) {
	if err := m.ValidateID(id); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false, nil
	}

	dock := m.shared
	if dock == nil {
		dock, err = m.newDock(m.cfg.DockID + ":" + id)
		if err != nil {
			return nil, false, fmt.Errorf("session: build dock for %s: %w", id, err)
		}
	}

	opts := []movement.Option{movement.WithClock(m.clock)}
	if m.observers != nil {
		if o := m.observers(id); o != nil {
			opts = append(opts, movement.WithObserver(o))
		}
	}
	ctrl, err := movement.NewController(m.cfg.Movement, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("session: new controller: %w", err)
	}

	s := &Session{
		id:         id,
		loginAt:    m.clock.Now(),
		status:     domain.SessionStatusOnline,
		controller: ctrl,
		dock:       dock,
	}
	m.sessions[id] = s
	return s, true, nil
}

// Get returns an online session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session: %q: %w", id, domain.ErrNotLoggedIn)
	}
	return s, nil
}

// Logout marks the session offline and forgets it.
func (m *Manager) Logout(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session: logout %q: %w", id, domain.ErrNotLoggedIn)
	}
	s.setStatus(domain.SessionStatusOffline)
	return s, nil
}

// List returns the online sessions ordered by id.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Count returns the number of online sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SharedDock returns the dock all sessions trade at, or nil when docks are
// per-session.
func (m *Manager) SharedDock() *trading.Dock { return m.shared }

// Config returns the manager's configuration.
func (m *Manager) Config() Config { return m.cfg }
