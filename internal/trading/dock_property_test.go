package trading

import (
	"context"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// Filled sells depress the buy price and lift the sell price; rejected sells
// leave the quote bit-for-bit unchanged. Prices never leave the price band.
func TestProperty_SellInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		step := rapid.Float64Range(0.01, 0.5).Draw(t, "step")
		pricing, err := NewProportionalPricing(step)
		if err != nil {
			t.Fatalf("pricing: %v", err)
		}
		item := domain.Item{
			ID: domain.ItemWater,
			Prices: domain.Prices{
				Buy:  rapid.Float64Range(0.01, 1e6).Draw(t, "buy"),
				Sell: rapid.Float64Range(0.01, 1e6).Draw(t, "sell"),
			},
			Stock: rapid.IntRange(0, 5).Draw(t, "stock"),
		}
		d, err := NewDock("prop", []domain.Item{item}, WithPricing(pricing))
		if err != nil {
			t.Fatalf("NewDock: %v", err)
		}

		ctx := context.Background()
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before, _ := d.Item(domain.ItemWater)
			if rapid.Bool().Draw(t, "buy_cmd") {
				q, err := d.Buy(ctx, domain.ItemWater)
				if err != nil {
					t.Fatalf("Buy: %v", err)
				}
				if q.Outcome == domain.TradeOutcomePriceLimit {
					if q.Prices != before.Prices || q.Stock != before.Stock {
						t.Fatalf("rejected buy changed state: %+v -> %+v", before, q)
					}
					continue
				}
				if q.Stock != before.Stock+1 {
					t.Fatalf("buy stock %d, want %d", q.Stock, before.Stock+1)
				}
				continue
			}

			q, err := d.Sell(ctx, domain.ItemWater)
			if err != nil {
				t.Fatalf("Sell: %v", err)
			}
			if before.Stock == 0 && q.Outcome != domain.TradeOutcomeUnavailable {
				t.Fatalf("sell without stock: outcome %s", q.Outcome)
			}
			if !q.Filled() {
				if q.Prices != before.Prices || q.Stock != before.Stock {
					t.Fatalf("rejected sell changed state: %+v -> %+v", before, q)
				}
				continue
			}
			if !(q.Prices.Buy < before.Prices.Buy) || !(q.Prices.Sell > before.Prices.Sell) {
				t.Fatalf("sell moved prices the wrong way: %+v -> %+v", before.Prices, q.Prices)
			}
			if q.Stock != before.Stock-1 {
				t.Fatalf("sell stock %d, want %d", q.Stock, before.Stock-1)
			}
		}

		final, _ := d.Item(domain.ItemWater)
		if final.Prices.Buy <= 0 || final.Prices.Sell <= 0 || final.Stock < 0 {
			t.Fatalf("invalid final state %+v", final)
		}
	})
}

// Long runs in one direction push quotes against the band edges. Prices
// stay finite and inside the band, and every filled sell still moves both
// sides strictly.
func TestProperty_LongRunsStayInBand(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		step := rapid.Float64Range(0.01, 0.5).Draw(t, "step")
		pricing, err := NewProportionalPricing(step)
		if err != nil {
			t.Fatalf("pricing: %v", err)
		}
		item := domain.Item{
			ID: domain.ItemWater,
			Prices: domain.Prices{
				Buy:  rapid.Float64Range(0.01, 1e6).Draw(t, "buy"),
				Sell: rapid.Float64Range(0.01, 1e6).Draw(t, "sell"),
			},
		}
		d, err := NewDock("prop", []domain.Item{item}, WithPricing(pricing))
		if err != nil {
			t.Fatalf("NewDock: %v", err)
		}

		ctx := context.Background()
		runs := rapid.IntRange(1, 6).Draw(t, "runs")
		for r := 0; r < runs; r++ {
			buying := rapid.Bool().Draw(t, "buying")
			length := rapid.IntRange(1, 3000).Draw(t, "length")
			for i := 0; i < length; i++ {
				before, _ := d.Item(domain.ItemWater)
				var q Quote
				if buying {
					q, err = d.Buy(ctx, domain.ItemWater)
				} else {
					q, err = d.Sell(ctx, domain.ItemWater)
				}
				if err != nil {
					t.Fatalf("trade: %v", err)
				}
				for _, v := range []float64{q.Prices.Buy, q.Prices.Sell} {
					if math.IsInf(v, 0) || math.IsNaN(v) || !(v > 0) {
						t.Fatalf("non-finite or non-positive price %+v after %d trades", q.Prices, i)
					}
				}
				if !q.Filled() {
					continue
				}
				if !DefaultPriceBand.Contains(q.Prices) {
					t.Fatalf("price %+v outside band", q.Prices)
				}
				if q.Side == domain.TradeSideSell &&
					(!(q.Prices.Buy < before.Prices.Buy) || !(q.Prices.Sell > before.Prices.Sell)) {
					t.Fatalf("sell moved prices the wrong way: %+v -> %+v", before.Prices, q.Prices)
				}
			}
		}
	})
}
