package movement

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestController(t testing.TB, cfg Config, clock Clock, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	c, err := NewController(cfg, opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestNewControllerStartsAtZero(t *testing.T) {
	c := newTestController(t, DefaultConfig(), newFakeClock())
	if c.Value() != 0 {
		t.Fatalf("expected initial position 0, got %d", c.Value())
	}
	if !c.Position().LastMoveAt.IsZero() {
		t.Fatalf("expected zero last move time, got %s", c.Position().LastMoveAt)
	}
	lo, hi := c.Bounds()
	if lo != -19 || hi != 19 {
		t.Fatalf("Bounds() = (%d, %d), want (-19, 19)", lo, hi)
	}
}

func TestMovingPastLeftBoundary(t *testing.T) {
	for _, clicks := range []int{20, 21, 25, 100} {
		t.Run(fmt.Sprintf("%d_clicks", clicks), func(t *testing.T) {
			clock := newFakeClock()
			c := newTestController(t, DefaultConfig(), clock)
			ctx := context.Background()

			for i := 0; i < clicks; i++ {
				c.MoveLeft(ctx)
				clock.Advance(DefaultMinTimeToMove)
			}

			if c.Value() != DefaultMinPosition {
				t.Fatalf("expected position %d after %d clicks, got %d", DefaultMinPosition, clicks, c.Value())
			}
		})
	}
}

func TestMovingPastRightBoundary(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, DefaultConfig(), clock)
	ctx := context.Background()

	var last Move
	for i := 0; i < 30; i++ {
		last = c.MoveRight(ctx)
		clock.Advance(DefaultMinTimeToMove)
	}

	if c.Value() != DefaultMaxPosition {
		t.Fatalf("expected position %d, got %d", DefaultMaxPosition, c.Value())
	}
	if last.Outcome != OutcomeClamped {
		t.Fatalf("expected last move to be clamped, got %s", last.Outcome)
	}
	if last.From != last.To {
		t.Fatalf("clamped move changed position: %+v", last)
	}
}

func TestMovingDuringTimer(t *testing.T) {
	for _, dir := range []Direction{Left, Right} {
		for _, clicks := range []int{2, 3} {
			t.Run(fmt.Sprintf("%s_%d", dir, clicks), func(t *testing.T) {
				clock := newFakeClock()
				c := newTestController(t, DefaultConfig(), clock)
				ctx := context.Background()

				outcomes := make([]Outcome, 0, clicks)
				for i := 0; i < clicks; i++ {
					var m Move
					if dir == Left {
						m = c.MoveLeft(ctx)
					} else {
						m = c.MoveRight(ctx)
					}
					outcomes = append(outcomes, m.Outcome)
					clock.Advance(500 * time.Millisecond)
				}

				want := int(dir)
				if c.Value() != want {
					t.Fatalf("expected position %d, got %d (outcomes %v)", want, c.Value(), outcomes)
				}
				if outcomes[0] != OutcomeMoved {
					t.Fatalf("expected first click to move, got %s", outcomes[0])
				}
				for i, o := range outcomes[1:] {
					if o != OutcomeThrottled {
						t.Fatalf("click %d: expected throttled, got %s", i+2, o)
					}
				}
			})
		}
	}
}

func TestMoveAppliesOnceCooldownElapses(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, DefaultConfig(), clock)
	ctx := context.Background()

	c.MoveLeft(ctx)
	clock.Advance(DefaultMinTimeToMove - time.Nanosecond)
	if m := c.MoveLeft(ctx); m.Outcome != OutcomeThrottled {
		t.Fatalf("expected throttled just before cooldown, got %s", m.Outcome)
	}

	clock.Advance(time.Nanosecond)
	m := c.MoveLeft(ctx)
	if m.Outcome != OutcomeMoved {
		t.Fatalf("expected move at exactly the cooldown, got %s", m.Outcome)
	}
	if m.From != -1 || m.To != -2 {
		t.Fatalf("unexpected move %+v", m)
	}
}

func TestThrottledMoveDoesNotExtendCooldown(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, DefaultConfig(), clock)
	ctx := context.Background()

	c.MoveRight(ctx)
	clock.Advance(time.Second)
	c.MoveRight(ctx) // throttled
	clock.Advance(time.Second)

	if m := c.MoveRight(ctx); m.Outcome != OutcomeMoved {
		t.Fatalf("expected cooldown measured from the last effective move, got %s", m.Outcome)
	}
	if c.Value() != 2 {
		t.Fatalf("expected position 2, got %d", c.Value())
	}
}

func TestClampedMoveDoesNotStartCooldown(t *testing.T) {
	clock := newFakeClock()
	cfg := Config{MinPosition: -1, MaxPosition: 1, MinTimeToMove: 2 * time.Second}
	c := newTestController(t, cfg, clock)
	ctx := context.Background()

	c.MoveLeft(ctx)
	clock.Advance(2 * time.Second)
	if m := c.MoveLeft(ctx); m.Outcome != OutcomeClamped {
		t.Fatalf("expected clamped, got %s", m.Outcome)
	}

	clock.Advance(time.Millisecond)
	if m := c.MoveRight(ctx); m.Outcome != OutcomeMoved {
		t.Fatalf("expected move right after a clamped attempt, got %s", m.Outcome)
	}
	if c.Value() != 0 {
		t.Fatalf("expected position 0, got %d", c.Value())
	}
}

func TestZeroCooldownNeverThrottles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTimeToMove = 0
	c := newTestController(t, cfg, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.MoveRight(ctx)
	}
	if c.Value() != 5 {
		t.Fatalf("expected position 5 with no cooldown, got %d", c.Value())
	}
}

func TestObserverSeesMoveBeforeCommit(t *testing.T) {
	clock := newFakeClock()
	var c *Controller
	var events []Event
	var seenDuringCallback []int

	c = newTestController(t, DefaultConfig(), clock, WithObserver(ObserverFunc(func(_ context.Context, ev Event) {
		events = append(events, ev)
		seenDuringCallback = append(seenDuringCallback, c.Value())
	})))
	ctx := context.Background()

	c.MoveLeft(ctx)
	c.MoveLeft(ctx) // throttled, no event
	clock.Advance(DefaultMinTimeToMove)
	c.MoveRight(ctx)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].From != 0 || events[0].To != -1 || events[0].Direction != Left {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].From != -1 || events[1].To != 0 || events[1].Direction != Right {
		t.Fatalf("unexpected second event %+v", events[1])
	}
	if seenDuringCallback[0] != 0 || seenDuringCallback[1] != -1 {
		t.Fatalf("observer saw committed position early: %v", seenDuringCallback)
	}
	if !events[1].At.Equal(clock.Now()) {
		t.Fatalf("event time = %s, want %s", events[1].At, clock.Now())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "degenerate world", cfg: Config{}},
		{name: "min above zero", cfg: Config{MinPosition: 1, MaxPosition: 5}, wantErr: true},
		{name: "max below zero", cfg: Config{MinPosition: -5, MaxPosition: -1}, wantErr: true},
		{name: "negative cooldown", cfg: Config{MinPosition: -1, MaxPosition: 1, MinTimeToMove: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewController() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	if Left.String() != "left" || Right.String() != "right" {
		t.Fatalf("unexpected direction names %q %q", Left, Right)
	}
	if got := Direction(0).String(); got != "direction(0)" {
		t.Errorf("Direction(0).String() = %q, want %q", got, "direction(0)")
	}
}
