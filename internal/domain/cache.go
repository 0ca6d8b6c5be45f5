package domain

import (
	"context"
	"time"
)

// PriceCache mirrors dock prices for readers outside the owning process.
type PriceCache interface {
	SetPrices(ctx context.Context, dockID string, item Item, ts time.Time) error
	GetPrices(ctx context.Context, dockID string, itemID ItemID) (Prices, time.Time, error)
	GetDock(ctx context.Context, dockID string) (map[ItemID]Prices, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
	// StreamTail returns the newest entry id, or "0" for an empty stream.
	StreamTail(ctx context.Context, stream string) (string, error)
}
