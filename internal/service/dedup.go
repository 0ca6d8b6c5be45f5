package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/dockside/internal/movement"
)

type commandIDKey struct{}

// WithCommandID tags ctx with a client-supplied command id. Commands carrying
// an id that was already applied within the dedup TTL replay the earlier
// result instead of running again.
func WithCommandID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, commandIDKey{}, id)
}

// CommandIDFrom returns the command id carried by ctx, if any.
func CommandIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(commandIDKey{}).(string)
	return id
}

type dedupEntry struct {
	result any
	seenAt time.Time
}

// Dedup remembers command results for a time-to-live window. It is safe for
// concurrent use. A non-positive TTL disables it.
type Dedup struct {
	seen  map[string]dedupEntry
	ttl   time.Duration
	clock movement.Clock
	mu    sync.Mutex
}

// NewDedup creates a Dedup that keeps results for ttl.
func NewDedup(ttl time.Duration, clock movement.Clock) *Dedup {
	if clock == nil {
		clock = movement.SystemClock{}
	}
	return &Dedup{
		seen:  make(map[string]dedupEntry),
		ttl:   ttl,
		clock: clock,
	}
}

// Lookup returns the result remembered for key if it has not expired.
func (d *Dedup) Lookup(key string) (any, bool) {
	if d.ttl <= 0 {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.seen[key]
	if !ok || d.clock.Now().Sub(e.seenAt) >= d.ttl {
		return nil, false
	}
	return e.result, true
}

// Remember stores result under key.
func (d *Dedup) Remember(key string, result any) {
	if d.ttl <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = dedupEntry{result: result, seenAt: d.clock.Now()}
}

// Forget drops every result remembered for sessionID.
func (d *Dedup) Forget(sessionID string) int {
	prefix := sessionID + "/"
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for key := range d.seen {
		if strings.HasPrefix(key, prefix) {
			delete(d.seen, key)
			n++
		}
	}
	return n
}

// Cleanup removes expired entries and returns how many were dropped.
func (d *Dedup) Cleanup() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	n := 0
	for key, e := range d.seen {
		if now.Sub(e.seenAt) >= d.ttl {
			delete(d.seen, key)
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is cancelled.
func (d *Dedup) Run(ctx context.Context, interval time.Duration) error {
	if d.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Cleanup()
		}
	}
}

// deduped runs fn unless ctx carries a command id whose result is remembered
// for this session and operation.
func deduped[T any](ctx context.Context, d *Dedup, sessionID, op string, fn func() (T, error)) (T, bool, error) {
	cmd := CommandIDFrom(ctx)
	if cmd == "" {
		r, err := fn()
		return r, false, err
	}

	key := sessionID + "/" + op + "/" + cmd
	if v, ok := d.Lookup(key); ok {
		if r, ok := v.(T); ok {
			return r, true, nil
		}
	}
	r, err := fn()
	if err == nil {
		d.Remember(key, r)
	}
	return r, false, err
}
