package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PriceCache implements domain.PriceCache using Redis hashes.
// Each dock is a hash at key "price:{dockID}" holding three fields per item:
// "{itemID}:buy", "{itemID}:sell" and "{itemID}:ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(dockID string) string {
	return "price:" + dockID
}

func itemField(id domain.ItemID, name string) string {
	return strconv.Itoa(int(id)) + ":" + name
}

// SetPrices stores the latest prices and timestamp for one dock item.
func (pc *PriceCache) SetPrices(ctx context.Context, dockID string, item domain.Item, ts time.Time) error {
	fields := map[string]interface{}{
		itemField(item.ID, "buy"):  strconv.FormatFloat(item.Prices.Buy, 'f', -1, 64),
		itemField(item.ID, "sell"): strconv.FormatFloat(item.Prices.Sell, 'f', -1, 64),
		itemField(item.ID, "ts"):   strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(dockID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set prices %s/%d: %w", dockID, item.ID, err)
	}
	return nil
}

// GetPrices retrieves the cached prices for one item.
// It returns domain.ErrNotFound when the item has never been cached.
func (pc *PriceCache) GetPrices(ctx context.Context, dockID string, itemID domain.ItemID) (domain.Prices, time.Time, error) {
	vals, err := pc.rdb.HMGet(ctx, priceKey(dockID),
		itemField(itemID, "buy"), itemField(itemID, "sell"), itemField(itemID, "ts")).Result()
	if err != nil {
		return domain.Prices{}, time.Time{}, fmt.Errorf("redis: get prices %s/%d: %w", dockID, itemID, err)
	}
	strs := make([]string, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return domain.Prices{}, time.Time{}, domain.ErrNotFound
		}
		strs[i] = s
	}

	var p domain.Prices
	if p.Buy, err = strconv.ParseFloat(strs[0], 64); err != nil {
		return domain.Prices{}, time.Time{}, fmt.Errorf("redis: parse buy price %s/%d: %w", dockID, itemID, err)
	}
	if p.Sell, err = strconv.ParseFloat(strs[1], 64); err != nil {
		return domain.Prices{}, time.Time{}, fmt.Errorf("redis: parse sell price %s/%d: %w", dockID, itemID, err)
	}
	tsNano, err := strconv.ParseInt(strs[2], 10, 64)
	if err != nil {
		return domain.Prices{}, time.Time{}, fmt.Errorf("redis: parse ts %s/%d: %w", dockID, itemID, err)
	}
	return p, time.Unix(0, tsNano), nil
}

// GetDock returns every cached item price for a dock. Items with a missing
// or malformed field are omitted.
func (pc *PriceCache) GetDock(ctx context.Context, dockID string) (map[domain.ItemID]domain.Prices, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(dockID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get dock %s: %w", dockID, err)
	}

	type partial struct {
		buy, sell       float64
		hasBuy, hasSell bool
	}
	parts := make(map[domain.ItemID]*partial)
	for field, raw := range vals {
		idStr, name, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		p := parts[domain.ItemID(id)]
		if p == nil {
			p = &partial{}
			parts[domain.ItemID(id)] = p
		}
		switch name {
		case "buy":
			p.buy, p.hasBuy = f, true
		case "sell":
			p.sell, p.hasSell = f, true
		}
	}

	out := make(map[domain.ItemID]domain.Prices, len(parts))
	for id, p := range parts {
		if p.hasBuy && p.hasSell {
			out[id] = domain.Prices{Buy: p.buy, Sell: p.sell}
		}
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
