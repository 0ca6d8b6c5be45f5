package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
)

type cachedPrice struct {
	prices domain.Prices
	ts     time.Time
}

// PriceCache implements domain.PriceCache with a map per dock.
type PriceCache struct {
	mu    sync.RWMutex
	docks map[string]map[domain.ItemID]cachedPrice
}

// NewPriceCache returns an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{docks: make(map[string]map[domain.ItemID]cachedPrice)}
}

func (pc *PriceCache) SetPrices(_ context.Context, dockID string, item domain.Item, ts time.Time) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	d, ok := pc.docks[dockID]
	if !ok {
		d = make(map[domain.ItemID]cachedPrice)
		pc.docks[dockID] = d
	}
	d[item.ID] = cachedPrice{prices: item.Prices, ts: ts}
	return nil
}

func (pc *PriceCache) GetPrices(_ context.Context, dockID string, itemID domain.ItemID) (domain.Prices, time.Time, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	p, ok := pc.docks[dockID][itemID]
	if !ok {
		return domain.Prices{}, time.Time{}, domain.ErrNotFound
	}
	return p.prices, p.ts, nil
}

func (pc *PriceCache) GetDock(_ context.Context, dockID string) (map[domain.ItemID]domain.Prices, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	out := make(map[domain.ItemID]domain.Prices, len(pc.docks[dockID]))
	for id, p := range pc.docks[dockID] {
		out[id] = p.prices
	}
	return out, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
