package trading

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/alanyoungcy/dockside/internal/domain"
)

func testItems() []domain.Item {
	return []domain.Item{
		{ID: domain.ItemWater, Name: "water", Prices: domain.Prices{Buy: 20, Sell: 15}, Stock: 1},
		{ID: domain.ItemMedicine, Name: "medicine", Prices: domain.Prices{Buy: 120, Sell: 90}, Stock: 0},
	}
}

func newTestDock(t *testing.T, opts ...DockOption) *Dock {
	t.Helper()
	d, err := NewDock("harbor", testItems(), opts...)
	if err != nil {
		t.Fatalf("NewDock: %v", err)
	}
	return d
}

func TestSellAfterBuyMovesPrices(t *testing.T) {
	d := newTestDock(t)
	ctx := context.Background()

	if _, err := d.Buy(ctx, domain.ItemMedicine); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	before, err := d.Prices(domain.ItemMedicine)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}

	q, err := d.Sell(ctx, domain.ItemMedicine)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if !q.Filled() {
		t.Fatalf("expected filled sell, got %s", q.Outcome)
	}
	if !(q.Prices.Buy < before.Buy) {
		t.Errorf("buy price %v not below %v", q.Prices.Buy, before.Buy)
	}
	if !(q.Prices.Sell > before.Sell) {
		t.Errorf("sell price %v not above %v", q.Prices.Sell, before.Sell)
	}
	if q.Stock != 0 {
		t.Errorf("stock = %d, want 0", q.Stock)
	}
}

func TestSellWithoutStockIsExactNoOp(t *testing.T) {
	var calls int
	d := newTestDock(t, WithObserver(ObserverFunc(func(context.Context, string, domain.Item, domain.TradeSide) {
		calls++
	})))
	ctx := context.Background()

	before, _ := d.Item(domain.ItemMedicine)
	q, err := d.Sell(ctx, domain.ItemMedicine)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if q.Outcome != domain.TradeOutcomeUnavailable {
		t.Fatalf("expected unavailable outcome, got %s", q.Outcome)
	}

	after, _ := d.Item(domain.ItemMedicine)
	if after.Prices.Buy != before.Prices.Buy || after.Prices.Sell != before.Prices.Sell {
		t.Fatalf("prices changed: %+v -> %+v", before.Prices, after.Prices)
	}
	if after.Stock != 0 {
		t.Fatalf("stock = %d, want 0", after.Stock)
	}
	if q.Prices != before.Prices {
		t.Fatalf("quote prices %+v, want %+v", q.Prices, before.Prices)
	}
	if calls != 0 {
		t.Fatalf("observer called %d times for a rejected sell", calls)
	}
}

func TestBuyRaisesBuyPriceAndStock(t *testing.T) {
	d := newTestDock(t)
	q, err := d.Buy(context.Background(), domain.ItemWater)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if want := 20 * (1 + DefaultPriceStep); q.Prices.Buy != want {
		t.Errorf("buy price = %v, want %v", q.Prices.Buy, want)
	}
	if want := 15 * (1 - DefaultPriceStep); q.Prices.Sell != want {
		t.Errorf("sell price = %v, want %v", q.Prices.Sell, want)
	}
	if q.Stock != 2 {
		t.Errorf("stock = %d, want 2", q.Stock)
	}
}

func TestPricesIsIdempotent(t *testing.T) {
	d := newTestDock(t)
	first, err := d.Prices(domain.ItemWater)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, _ := d.Prices(domain.ItemWater)
		if got != first {
			t.Fatalf("Prices() call %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestUnknownItem(t *testing.T) {
	d := newTestDock(t)
	ctx := context.Background()
	const missing domain.ItemID = 9999

	if _, err := d.Buy(ctx, missing); !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("Buy error = %v, want ErrUnknownItem", err)
	}
	if _, err := d.Sell(ctx, missing); !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("Sell error = %v, want ErrUnknownItem", err)
	}
	if _, err := d.Prices(missing); !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("Prices error = %v, want ErrUnknownItem", err)
	}
}

func TestItemsSortedSnapshot(t *testing.T) {
	d := newTestDock(t)
	items := d.Items()
	if len(items) != 2 {
		t.Fatalf("len(Items()) = %d, want 2", len(items))
	}
	if items[0].ID != domain.ItemMedicine || items[1].ID != domain.ItemWater {
		t.Fatalf("items not sorted by id: %v, %v", items[0].ID, items[1].ID)
	}

	items[0].Stock = 100
	again, _ := d.Item(domain.ItemMedicine)
	if again.Stock != 0 {
		t.Fatalf("snapshot mutation leaked into dock")
	}
}

func TestNewDockRejectsBadItems(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.Item
	}{
		{"zero price", []domain.Item{{ID: 1, Prices: domain.Prices{Buy: 0, Sell: 1}}}},
		{"nan price", []domain.Item{{ID: 1, Prices: domain.Prices{Buy: math.NaN(), Sell: 1}}}},
		{"infinite price", []domain.Item{{ID: 1, Prices: domain.Prices{Buy: 1, Sell: math.Inf(1)}}}},
		{"negative stock", []domain.Item{{ID: 1, Prices: domain.Prices{Buy: 1, Sell: 1}, Stock: -1}}},
		{"duplicate", []domain.Item{
			{ID: 1, Prices: domain.Prices{Buy: 1, Sell: 1}},
			{ID: 1, Prices: domain.Prices{Buy: 2, Sell: 2}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDock("d", tt.items); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := NewDock("", testItems()); err == nil {
		t.Fatalf("expected error for empty dock id")
	}
}

func TestRestoreSkipsUnknownItems(t *testing.T) {
	d := newTestDock(t)
	n, err := d.Restore([]domain.Item{
		{ID: domain.ItemWater, Prices: domain.Prices{Buy: 30, Sell: 25}, Stock: 7},
		{ID: 4242, Prices: domain.Prices{Buy: 1, Sell: 1}},
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d items, want 1", n)
	}
	got, _ := d.Item(domain.ItemWater)
	if got.Prices.Buy != 30 || got.Stock != 7 || got.Name != "water" {
		t.Fatalf("unexpected restored item %+v", got)
	}
	if _, err := d.Item(4242); !errors.Is(err, domain.ErrUnknownItem) {
		t.Fatalf("unknown item was restored")
	}
}

func TestObserverSeesMutationOrder(t *testing.T) {
	var mu sync.Mutex
	var stocks []int
	d := newTestDock(t, WithObserver(ObserverFunc(func(_ context.Context, _ string, it domain.Item, _ domain.TradeSide) {
		mu.Lock()
		stocks = append(stocks, it.Stock)
		mu.Unlock()
	})))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Buy(ctx, domain.ItemWater); err != nil {
				t.Errorf("Buy: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(stocks) != 50 {
		t.Fatalf("observer saw %d changes, want 50", len(stocks))
	}
	for i, s := range stocks {
		if s != i+2 {
			t.Fatalf("change %d reported stock %d, want %d", i, s, i+2)
		}
	}
}

func TestNewProportionalPricingRange(t *testing.T) {
	for _, step := range []float64{0, -0.1, 1, 1.5} {
		if _, err := NewProportionalPricing(step); err == nil {
			t.Errorf("NewProportionalPricing(%v) succeeded, want error", step)
		}
	}
	if _, err := NewProportionalPricing(0.2); err != nil {
		t.Errorf("NewProportionalPricing(0.2): %v", err)
	}
}

func TestRestoreRejectsNonFinitePrices(t *testing.T) {
	d := newTestDock(t)
	for _, p := range []domain.Prices{
		{Buy: math.NaN(), Sell: 15},
		{Buy: 20, Sell: math.Inf(1)},
	} {
		if _, err := d.Restore([]domain.Item{{ID: domain.ItemWater, Prices: p, Stock: 1}}); err == nil {
			t.Errorf("Restore(%v) succeeded, want error", p)
		}
	}
	got, _ := d.Item(domain.ItemWater)
	if got.Prices != (domain.Prices{Buy: 20, Sell: 15}) {
		t.Fatalf("prices changed after rejected restore: %+v", got.Prices)
	}
}

func TestBuyRejectedAtPriceLimit(t *testing.T) {
	band, err := NewPriceBand(1, 25)
	if err != nil {
		t.Fatalf("NewPriceBand: %v", err)
	}
	var calls int
	d := newTestDock(t, WithPriceBand(band), WithObserver(ObserverFunc(func(context.Context, string, domain.Item, domain.TradeSide) {
		calls++
	})))
	ctx := context.Background()

	// 20 -> 21 -> 22.05 -> 23.1525 -> 24.310125 -> 25.52563125 breaks the cap.
	for i := 0; i < 4; i++ {
		if q, _ := d.Buy(ctx, domain.ItemWater); !q.Filled() {
			t.Fatalf("buy %d: outcome %s, want filled", i, q.Outcome)
		}
	}
	before, _ := d.Item(domain.ItemWater)
	q, err := d.Buy(ctx, domain.ItemWater)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if q.Outcome != domain.TradeOutcomePriceLimit {
		t.Fatalf("outcome = %s, want %s", q.Outcome, domain.TradeOutcomePriceLimit)
	}
	after, _ := d.Item(domain.ItemWater)
	if after != before || q.Prices != before.Prices || q.Stock != before.Stock {
		t.Fatalf("rejected buy changed state: %+v -> %+v (quote %+v)", before, after, q)
	}
	if calls != 4 {
		t.Fatalf("observer called %d times, want 4", calls)
	}
}

func TestSellRejectedAtPriceLimit(t *testing.T) {
	band, err := NewPriceBand(1, 16)
	if err != nil {
		t.Fatalf("NewPriceBand: %v", err)
	}
	items := []domain.Item{{ID: domain.ItemWater, Prices: domain.Prices{Buy: 10, Sell: 15}, Stock: 3}}
	d, err := NewDock("harbor", items, WithPriceBand(band))
	if err != nil {
		t.Fatalf("NewDock: %v", err)
	}
	ctx := context.Background()

	// The sell price rises 15 -> 15.75, then 16.5375 would break the cap.
	if q, _ := d.Sell(ctx, domain.ItemWater); !q.Filled() {
		t.Fatalf("first sell outcome %s, want filled", q.Outcome)
	}
	q, err := d.Sell(ctx, domain.ItemWater)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if q.Outcome != domain.TradeOutcomePriceLimit {
		t.Fatalf("outcome = %s, want %s", q.Outcome, domain.TradeOutcomePriceLimit)
	}
	if q.Stock != 2 || q.Prices != (domain.Prices{Buy: 9.5, Sell: 15.75}) {
		t.Fatalf("rejected sell changed state: %+v", q)
	}
}

func TestNewPriceBand(t *testing.T) {
	bad := [][2]float64{{0, 1}, {-1, 1}, {2, 1}, {1, 1}, {1, math.Inf(1)}, {math.NaN(), 1}}
	for _, b := range bad {
		if _, err := NewPriceBand(b[0], b[1]); err == nil {
			t.Errorf("NewPriceBand(%v, %v) succeeded, want error", b[0], b[1])
		}
	}
	if _, err := NewPriceBand(0.01, 1e6); err != nil {
		t.Errorf("NewPriceBand(0.01, 1e6): %v", err)
	}
}
