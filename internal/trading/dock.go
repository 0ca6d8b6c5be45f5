// Package trading implements a dock: the per-item buy/sell quotes and stock a
// player trades against, and how those quotes respond to trades.
package trading

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// Quote is the result of a buy or sell command.
type Quote struct {
	ItemID  domain.ItemID       `json:"item_id"`
	Side    domain.TradeSide    `json:"side"`
	Outcome domain.TradeOutcome `json:"outcome"`
	Prices  domain.Prices       `json:"prices"`
	Stock   int                 `json:"stock"`
}

// Filled reports whether the dock applied the command.
func (q Quote) Filled() bool { return q.Outcome == domain.TradeOutcomeFilled }

// Observer is notified of every filled trade while the dock still holds its
// lock, so notifications arrive in mutation order. Observers must not call
// back into the dock.
type Observer interface {
	ItemChanged(ctx context.Context, dockID string, item domain.Item, side domain.TradeSide)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, dockID string, item domain.Item, side domain.TradeSide)

// ItemChanged calls f.
func (f ObserverFunc) ItemChanged(ctx context.Context, dockID string, item domain.Item, side domain.TradeSide) {
	f(ctx, dockID, item, side)
}

// DockOption customises a Dock.
type DockOption func(*Dock)

// WithPricing replaces the default proportional pricing policy.
func WithPricing(p PricingPolicy) DockOption {
	return func(d *Dock) { d.pricing = p }
}

// WithPriceBand replaces DefaultPriceBand.
func WithPriceBand(b PriceBand) DockOption {
	return func(d *Dock) { d.band = b }
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) DockOption {
	return func(d *Dock) { d.observers = append(d.observers, o) }
}

// Dock holds the quotes and stock for one trading location. It is safe for
// concurrent use; all mutations are serialized.
type Dock struct {
	id        string
	pricing   PricingPolicy
	band      PriceBand
	observers []Observer

	mu    sync.Mutex
	items map[domain.ItemID]domain.Item
}

// NewDock builds a dock trading the given items.
func NewDock(id string, items []domain.Item, opts ...DockOption) (*Dock, error) {
	if id == "" {
		return nil, fmt.Errorf("trading: dock id is required")
	}
	d := &Dock{
		id:      id,
		pricing: ProportionalPricing{Step: DefaultPriceStep},
		band:    DefaultPriceBand,
		items:   make(map[domain.ItemID]domain.Item, len(items)),
	}
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return nil, fmt.Errorf("trading: new dock %s: %w", id, err)
		}
		if _, dup := d.items[it.ID]; dup {
			return nil, fmt.Errorf("trading: new dock %s: duplicate item %d", id, it.ID)
		}
		d.items[it.ID] = it
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func validateItem(it domain.Item) error {
	if !validPrice(it.Prices.Buy) || !validPrice(it.Prices.Sell) {
		return fmt.Errorf("item %d: prices must be positive and finite, got %v/%v", it.ID, it.Prices.Buy, it.Prices.Sell)
	}
	if it.Stock < 0 {
		return fmt.Errorf("item %d: stock must not be negative, got %d", it.ID, it.Stock)
	}
	return nil
}

// ID returns the dock identifier.
func (d *Dock) ID() string { return d.id }

// Buy takes one unit into the dock's stock and reprices the item upward. A
// buy whose new quote would leave the price band is rejected with a
// price-limit outcome and changes nothing.
func (d *Dock) Buy(ctx context.Context, id domain.ItemID) (Quote, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it, ok := d.items[id]
	if !ok {
		return Quote{}, fmt.Errorf("trading: buy %d at %s: %w", id, d.id, domain.ErrUnknownItem)
	}
	next := d.pricing.AfterBuy(it.Prices)
	if !d.band.Contains(next) {
		return quoteOf(it, domain.TradeSideBuy, domain.TradeOutcomePriceLimit), nil
	}
	it.Stock++
	it.Prices = next
	d.commit(ctx, it, domain.TradeSideBuy)
	return quoteOf(it, domain.TradeSideBuy, domain.TradeOutcomeFilled), nil
}

// Sell releases one unit of stock and reprices the item: the buy price falls
// and the sell price rises. With no stock the command is rejected with an
// unavailable outcome and the quote is left untouched; the same holds, with
// a price-limit outcome, when the new quote would leave the price band.
func (d *Dock) Sell(ctx context.Context, id domain.ItemID) (Quote, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it, ok := d.items[id]
	if !ok {
		return Quote{}, fmt.Errorf("trading: sell %d at %s: %w", id, d.id, domain.ErrUnknownItem)
	}
	if it.Stock == 0 {
		return quoteOf(it, domain.TradeSideSell, domain.TradeOutcomeUnavailable), nil
	}
	next := d.pricing.AfterSell(it.Prices)
	if !d.band.Contains(next) {
		return quoteOf(it, domain.TradeSideSell, domain.TradeOutcomePriceLimit), nil
	}
	it.Stock--
	it.Prices = next
	d.commit(ctx, it, domain.TradeSideSell)
	return quoteOf(it, domain.TradeSideSell, domain.TradeOutcomeFilled), nil
}

// commit stores the item and notifies observers. Caller holds d.mu.
func (d *Dock) commit(ctx context.Context, it domain.Item, side domain.TradeSide) {
	d.items[it.ID] = it
	for _, o := range d.observers {
		o.ItemChanged(ctx, d.id, it, side)
	}
}

// Prices returns the current quote for an item.
func (d *Dock) Prices(id domain.ItemID) (domain.Prices, error) {
	it, err := d.Item(id)
	if err != nil {
		return domain.Prices{}, err
	}
	return it.Prices, nil
}

// Item returns the full state of one item.
func (d *Dock) Item(id domain.ItemID) (domain.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it, ok := d.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("trading: item %d at %s: %w", id, d.id, domain.ErrUnknownItem)
	}
	return it, nil
}

// Items returns a snapshot of every item, ordered by id.
func (d *Dock) Items() []domain.Item {
	d.mu.Lock()
	out := make([]domain.Item, 0, len(d.items))
	for _, it := range d.items {
		out = append(out, it)
	}
	d.mu.Unlock()

	domain.SortItems(out)
	return out
}

// Restore overwrites the state of known items with persisted values. Items
// the dock does not trade are skipped. It returns the number restored.
func (d *Dock) Restore(items []domain.Item) (int, error) {
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return 0, fmt.Errorf("trading: restore %s: %w", d.id, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, it := range items {
		cur, ok := d.items[it.ID]
		if !ok {
			continue
		}
		if it.Name == "" {
			it.Name = cur.Name
		}
		d.items[it.ID] = it
		n++
	}
	return n, nil
}

func quoteOf(it domain.Item, side domain.TradeSide, outcome domain.TradeOutcome) Quote {
	return Quote{
		ItemID:  it.ID,
		Side:    side,
		Outcome: outcome,
		Prices:  it.Prices,
		Stock:   it.Stock,
	}
}
