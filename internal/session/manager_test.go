package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/movement"
	"github.com/alanyoungcy/dockside/internal/trading"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func catalogDocks(id string) (*trading.Dock, error) {
	return trading.DefaultCatalog().NewDock(id)
}

func newTestManager(t *testing.T, mutate func(*Config), opts ...Option) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg, catalogDocks, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestLoginAcceptsMaxLengthID(t *testing.T) {
	m := newTestManager(t, nil)
	id := strings.Repeat("a", 20)

	s, created, err := m.Login(context.Background(), id)
	if err != nil {
		t.Fatalf("Login(%q): %v", id, err)
	}
	if !created {
		t.Fatalf("expected a new session")
	}
	if s.Status() != domain.SessionStatusOnline {
		t.Fatalf("status = %q, want %q", s.Status(), domain.SessionStatusOnline)
	}
	if s.Snapshot().Position.Value != 0 {
		t.Fatalf("expected starting position 0")
	}
}

func TestLoginRejectsInvalidIDs(t *testing.T) {
	m := newTestManager(t, nil)
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"21 chars", strings.Repeat("b", 21)},
		{"21 runes", strings.Repeat("ö", 21)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Login(context.Background(), tt.id)
			if !errors.Is(err, domain.ErrInvalidSessionID) {
				t.Fatalf("Login error = %v, want ErrInvalidSessionID", err)
			}
		})
	}

	if _, _, err := m.Login(context.Background(), strings.Repeat("ö", 20)); err != nil {
		t.Fatalf("20 multi-byte characters rejected: %v", err)
	}
}

func TestLoginIsIdempotent(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Movement.MinTimeToMove = 0 })
	ctx := context.Background()

	first, _, err := m.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	first.MoveRight(ctx)

	second, created, err := m.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if created {
		t.Fatalf("second login created a new session")
	}
	if second != first || second.Snapshot().Position.Value != 1 {
		t.Fatalf("second login did not return the existing session")
	}
}

func TestGetBeforeLogin(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Get("ghost"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("Get error = %v, want ErrNotLoggedIn", err)
	}
	if _, err := m.Logout("ghost"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("Logout error = %v, want ErrNotLoggedIn", err)
	}
}

func TestLogout(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	if _, _, err := m.Login(ctx, "bob"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	s, err := m.Logout("bob")
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.Status() != domain.SessionStatusOffline {
		t.Fatalf("status = %q, want Offline", s.Status())
	}
	if _, err := m.Get("bob"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("session still reachable after logout: %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", m.Count())
	}
}

func TestSharedAndPrivateDocks(t *testing.T) {
	ctx := context.Background()

	shared := newTestManager(t, nil)
	a, _, _ := shared.Login(ctx, "a")
	b, _, _ := shared.Login(ctx, "b")
	if a.Dock() != b.Dock() || a.Dock() != shared.SharedDock() {
		t.Fatalf("shared manager handed out different docks")
	}

	private := newTestManager(t, func(c *Config) { c.SharedDock = false })
	if private.SharedDock() != nil {
		t.Fatalf("private manager has a shared dock")
	}
	c, _, _ := private.Login(ctx, "c")
	d, _, _ := private.Login(ctx, "d")
	if c.Dock() == d.Dock() {
		t.Fatalf("private sessions share a dock")
	}
	if c.Dock().ID() != "harbor:c" {
		t.Fatalf("dock id = %q, want %q", c.Dock().ID(), "harbor:c")
	}
}

func TestObserverFactoryAndClock(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var got []string
	m := newTestManager(t, nil,
		WithClock(clock),
		WithObserverFactory(func(id string) movement.Observer {
			return movement.ObserverFunc(func(_ context.Context, ev movement.Event) {
				got = append(got, id)
			})
		}),
	)
	ctx := context.Background()

	s, _, _ := m.Login(ctx, "carol")
	if !s.LoginAt().Equal(clock.now) {
		t.Fatalf("LoginAt = %s, want %s", s.LoginAt(), clock.now)
	}
	s.MoveLeft(ctx)
	s.MoveLeft(ctx) // throttled by the frozen clock

	if len(got) != 1 || got[0] != "carol" {
		t.Fatalf("observer calls = %v, want [carol]", got)
	}
}

func TestNewManagerValidation(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.MaxIDLength = 0 },
		func(c *Config) { c.DockID = "" },
		func(c *Config) { c.Movement.MinPosition = 3 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := NewManager(cfg, catalogDocks); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
	if _, err := NewManager(DefaultConfig(), nil); err == nil {
		t.Errorf("expected error for nil dock factory")
	}
}

func TestListOrdered(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	for _, id := range []string{"zed", "amy", "kim"} {
		if _, _, err := m.Login(ctx, id); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	list := m.List()
	if len(list) != 3 || list[0].ID() != "amy" || list[2].ID() != "zed" {
		t.Fatalf("unexpected list order")
	}
}
