package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// streamMaxLen caps the trade stream via XADD MAXLEN ~. The stream is a
	// replay window for the live feed, not the ledger of record.
	streamMaxLen int64 = 10000
	subBuffer          = 128

	// payloadField is the single field every stream entry carries.
	payloadField = "payload"
)

// SignalBus implements domain.SignalBus. Position, price and session events
// travel over Pub/Sub; ledger rows go to a stream that every replica's UI hub
// tails, so a trade executed on one process reaches clients on all of them.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends payload on a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel. Names with glob characters, such as the
// hub's "ch:position:*", use PSUBSCRIBE. The returned channel closes when
// ctx is cancelled or the connection drops.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := sb.rdb.Subscribe(ctx)
	var err error
	if strings.ContainsAny(channel, "*?[") {
		err = pubsub.PSubscribe(ctx, channel)
	} else {
		err = pubsub.Subscribe(ctx, channel)
	}
	if err == nil {
		// The confirmation guarantees every later publish is delivered.
		_, err = pubsub.Receive(ctx)
	}
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subBuffer)
	go relay(ctx, pubsub, out)
	return out, nil
}

// relay copies payloads from pubsub to out until ctx ends, then closes both.
func relay(ctx context.Context, pubsub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer pubsub.Close()

	in := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// StreamAppend adds payload to stream.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []any{payloadField, payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID without blocking.
// Use "0" for the start of the stream, or the id StreamTail returned to see
// only later entries.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		messages = appendEntries(messages, s.Messages)
	}
	return messages, nil
}

// StreamTail returns the id of the newest entry in stream, or "0" when it
// is empty or missing.
func (sb *SignalBus) StreamTail(ctx context.Context, stream string) (string, error) {
	last, err := sb.rdb.XRevRangeN(ctx, stream, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis: stream tail %s: %w", stream, err)
	}
	if len(last) == 0 {
		return "0", nil
	}
	return last[0].ID, nil
}

// appendEntries converts XMessages, skipping any written without a payload
// field by another producer.
func appendEntries(dst []domain.StreamMessage, msgs []redis.XMessage) []domain.StreamMessage {
	for _, msg := range msgs {
		var data []byte
		switch v := msg.Values[payloadField].(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			continue
		}
		dst = append(dst, domain.StreamMessage{ID: msg.ID, Payload: data})
	}
	return dst
}

var _ domain.SignalBus = (*SignalBus)(nil)
