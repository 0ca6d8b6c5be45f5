package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBus()

	exact, err := b.Subscribe(ctx, "ch:price:harbor")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	pattern, err := b.Subscribe(ctx, "ch:position:*")
	if err != nil {
		t.Fatalf("Subscribe pattern: %v", err)
	}

	_ = b.Publish(ctx, "ch:price:harbor", []byte("p1"))
	_ = b.Publish(ctx, "ch:position:alice", []byte("m1"))

	if got := string(recv(t, exact)); got != "p1" {
		t.Errorf("exact subscriber got %q, want %q", got, "p1")
	}
	if got := string(recv(t, pattern)); got != "m1" {
		t.Errorf("pattern subscriber got %q, want %q", got, "m1")
	}
	select {
	case msg := <-exact:
		t.Fatalf("exact subscriber received unrelated message %q", msg)
	default:
	}
}

func TestBusSubscriptionClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBus()
	ch, err := b.Subscribe(ctx, "ch:session:x")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if err := b.Publish(context.Background(), "ch:session:x", []byte("late")); err != nil {
		t.Fatalf("Publish after unsubscribe: %v", err)
	}
}

func TestBusStreams(t *testing.T) {
	ctx := context.Background()
	b := NewBus()
	for _, p := range []string{"a", "b", "c"} {
		if err := b.StreamAppend(ctx, domain.StreamTrades, []byte(p)); err != nil {
			t.Fatalf("StreamAppend: %v", err)
		}
	}

	all, err := b.StreamRead(ctx, domain.StreamTrades, "0", 10)
	if err != nil {
		t.Fatalf("StreamRead: %v", err)
	}
	if len(all) != 3 || string(all[0].Payload) != "a" {
		t.Fatalf("unexpected stream contents %+v", all)
	}

	rest, _ := b.StreamRead(ctx, domain.StreamTrades, all[0].ID, 1)
	if len(rest) != 1 || string(rest[0].Payload) != "b" {
		t.Fatalf("read after %s = %+v", all[0].ID, rest)
	}

	if tail, _ := b.StreamTail(ctx, domain.StreamTrades); tail != all[2].ID {
		t.Fatalf("StreamTail = %q, want %q", tail, all[2].ID)
	}
	if tail, _ := b.StreamTail(ctx, "stream:empty"); tail != "0" {
		t.Fatalf("empty StreamTail = %q, want 0", tail)
	}
	if after, _ := b.StreamRead(ctx, domain.StreamTrades, all[2].ID, 10); len(after) != 0 {
		t.Fatalf("read after tail = %+v", after)
	}

	if _, err := b.StreamRead(ctx, domain.StreamTrades, "bogus", 1); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lm.now = func() time.Time { return now }

	unlock, err := lm.Acquire(ctx, "dock:harbor", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := lm.Acquire(ctx, "dock:harbor", time.Second); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second Acquire error = %v, want ErrLockHeld", err)
	}

	now = now.Add(2 * time.Second)
	unlock2, err := lm.Acquire(ctx, "dock:harbor", time.Second)
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}

	unlock() // stale holder must not release the new lease
	if _, err := lm.Acquire(ctx, "dock:harbor", time.Second); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("stale unlock released the current lease")
	}
	unlock2()
	unlock2()
	if _, err := lm.Acquire(ctx, "dock:harbor", time.Second); err != nil {
		t.Fatalf("Acquire after unlock: %v", err)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ctx, "k", 3, time.Second); !ok {
			t.Fatalf("hit %d rejected", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "k", 3, time.Second); ok {
		t.Fatal("fourth hit allowed")
	}
	if ok, _ := rl.Allow(ctx, "other", 3, time.Second); !ok {
		t.Fatal("independent key rejected")
	}

	now = now.Add(1001 * time.Millisecond)
	if ok, _ := rl.Allow(ctx, "k", 3, time.Second); !ok {
		t.Fatal("hit after window rejected")
	}
}

func TestPriceCache(t *testing.T) {
	ctx := context.Background()
	pc := NewPriceCache()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, _, err := pc.GetPrices(ctx, "harbor", domain.ItemWater); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetPrices error = %v, want ErrNotFound", err)
	}

	item := domain.Item{ID: domain.ItemWater, Prices: domain.Prices{Buy: 21, Sell: 14.25}}
	if err := pc.SetPrices(ctx, "harbor", item, ts); err != nil {
		t.Fatalf("SetPrices: %v", err)
	}
	p, got, err := pc.GetPrices(ctx, "harbor", domain.ItemWater)
	if err != nil {
		t.Fatalf("GetPrices: %v", err)
	}
	if p != item.Prices || !got.Equal(ts) {
		t.Fatalf("GetPrices = %+v @ %s", p, got)
	}
	all, _ := pc.GetDock(ctx, "harbor")
	if len(all) != 1 || all[domain.ItemWater] != item.Prices {
		t.Fatalf("GetDock = %+v", all)
	}
}
