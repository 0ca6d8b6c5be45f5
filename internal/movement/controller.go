// Package movement implements the player's one-dimensional position. A
// Controller clamps the position to the world boundary and rate-limits moves
// so that at most one displacement takes effect per cooldown window.
//
// Neither a clamped nor a throttled move is an error: both are reported as a
// Move outcome and leave the position unchanged.
package movement

import (
	"context"
	"fmt"
	"time"
)

// Defaults for the world boundary and the move cooldown.
const (
	DefaultMinPosition   = -19
	DefaultMaxPosition   = 19
	DefaultMinTimeToMove = 2 * time.Second
)

// Direction is the sign of a one-step displacement.
type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

// String returns "left" or "right".
func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Outcome classifies what a move command did.
type Outcome string

const (
	// OutcomeMoved means the position changed by one step.
	OutcomeMoved Outcome = "moved"
	// OutcomeClamped means the step would have left the world boundary.
	OutcomeClamped Outcome = "clamped"
	// OutcomeThrottled means the step arrived inside the cooldown window of
	// the previous effective move.
	OutcomeThrottled Outcome = "throttled"
)

// Move is the result of a single move command. To equals From unless
// Outcome is OutcomeMoved.
type Move struct {
	Direction Direction `json:"direction"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	Outcome   Outcome   `json:"outcome"`
}

// Event describes an accepted move. Observers receive it before the new
// position is committed.
type Event struct {
	Direction Direction
	From      int
	To        int
	At        time.Time
}

// Observer is notified of every accepted move.
type Observer interface {
	PositionChanging(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// PositionChanging calls f(ctx, ev).
func (f ObserverFunc) PositionChanging(ctx context.Context, ev Event) { f(ctx, ev) }

// Config bounds the world and sets the move cooldown.
type Config struct {
	MinPosition   int
	MaxPosition   int
	MinTimeToMove time.Duration
}

// DefaultConfig returns the stock world: [-19, 19] with a 2s cooldown.
func DefaultConfig() Config {
	return Config{
		MinPosition:   DefaultMinPosition,
		MaxPosition:   DefaultMaxPosition,
		MinTimeToMove: DefaultMinTimeToMove,
	}
}

// Validate reports whether the config describes a usable world. The start
// position 0 must lie inside the boundary.
func (c Config) Validate() error {
	if c.MinPosition > 0 {
		return fmt.Errorf("movement: min position %d must be <= 0", c.MinPosition)
	}
	if c.MaxPosition < 0 {
		return fmt.Errorf("movement: max position %d must be >= 0", c.MaxPosition)
	}
	if c.MinTimeToMove < 0 {
		return fmt.Errorf("movement: min time to move %s must not be negative", c.MinTimeToMove)
	}
	return nil
}

// Position is a point-in-time view of a Controller.
type Position struct {
	Value      int       `json:"value"`
	LastMoveAt time.Time `json:"last_move_at"`
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the system clock, typically with a fake in tests.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithObserver registers the observer notified of accepted moves.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller owns one session's position. It is not safe for concurrent use;
// callers serialize commands per session.
type Controller struct {
	cfg      Config
	clock    Clock
	observer Observer

	value    int
	lastMove time.Time
	hasMoved bool
}

// NewController returns a Controller at position 0.
func NewController(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:   cfg,
		clock: SystemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MoveLeft attempts to shift the position by -1.
func (c *Controller) MoveLeft(ctx context.Context) Move {
	return c.move(ctx, Left)
}

// MoveRight attempts to shift the position by +1.
func (c *Controller) MoveRight(ctx context.Context) Move {
	return c.move(ctx, Right)
}

func (c *Controller) move(ctx context.Context, dir Direction) Move {
	m := Move{Direction: dir, From: c.value, To: c.value}

	now := c.clock.Now()
	if c.hasMoved && now.Sub(c.lastMove) < c.cfg.MinTimeToMove {
		m.Outcome = OutcomeThrottled
		return m
	}

	next := c.value + int(dir)
	if next < c.cfg.MinPosition || next > c.cfg.MaxPosition {
		m.Outcome = OutcomeClamped
		return m
	}

	if c.observer != nil {
		c.observer.PositionChanging(ctx, Event{Direction: dir, From: c.value, To: next, At: now})
	}

	c.value = next
	c.lastMove = now
	c.hasMoved = true

	m.To = next
	m.Outcome = OutcomeMoved
	return m
}

// Value returns the current position.
func (c *Controller) Value() int { return c.value }

// Position returns the current position and the time of the last effective
// move (zero if the controller has never moved).
func (c *Controller) Position() Position {
	return Position{Value: c.value, LastMoveAt: c.lastMove}
}

// Bounds returns the inclusive world boundary.
func (c *Controller) Bounds() (lo, hi int) {
	return c.cfg.MinPosition, c.cfg.MaxPosition
}
