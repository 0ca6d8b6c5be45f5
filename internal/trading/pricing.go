package trading

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// DefaultPriceStep is the proportional price move applied per trade.
const DefaultPriceStep = 0.05

// DefaultPriceBand bounds every quote a trade may produce. Repeated trades
// in one direction compound geometrically, so without a band prices would
// drift to +Inf or underflow to zero.
var DefaultPriceBand = PriceBand{Min: 1e-6, Max: 1e9}

// PriceBand is the closed range a repriced quote must stay inside.
type PriceBand struct {
	Min float64
	Max float64
}

// NewPriceBand validates 0 < min < max < +Inf.
func NewPriceBand(min, max float64) (PriceBand, error) {
	if !(min > 0) || !(max > min) || math.IsInf(max, 1) {
		return PriceBand{}, fmt.Errorf("trading: price band [%v, %v] must satisfy 0 < min < max < +Inf", min, max)
	}
	return PriceBand{Min: min, Max: max}, nil
}

// Contains reports whether both sides of p lie inside the band.
func (b PriceBand) Contains(p domain.Prices) bool {
	return b.contains(p.Buy) && b.contains(p.Sell)
}

func (b PriceBand) contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// validPrice is false for zero, negative, NaN and infinite prices.
func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// PricingPolicy computes the quote an item moves to after a filled trade.
// Implementations must keep prices strictly positive, lower the buy price and
// raise the sell price on a sell.
type PricingPolicy interface {
	AfterBuy(p domain.Prices) domain.Prices
	AfterSell(p domain.Prices) domain.Prices
}

// ProportionalPricing moves both sides of the quote by a fixed fraction.
// A sell scales buy by (1-Step) and sell by (1+Step); a buy mirrors that.
type ProportionalPricing struct {
	Step float64
}

// NewProportionalPricing validates 0 < step < 1.
func NewProportionalPricing(step float64) (ProportionalPricing, error) {
	if !(step > 0 && step < 1) {
		return ProportionalPricing{}, fmt.Errorf("trading: price step %v must be in (0, 1)", step)
	}
	return ProportionalPricing{Step: step}, nil
}

func (p ProportionalPricing) AfterBuy(cur domain.Prices) domain.Prices {
	return domain.Prices{
		Buy:  cur.Buy * (1 + p.Step),
		Sell: cur.Sell * (1 - p.Step),
	}
}

func (p ProportionalPricing) AfterSell(cur domain.Prices) domain.Prices {
	return domain.Prices{
		Buy:  cur.Buy * (1 - p.Step),
		Sell: cur.Sell * (1 + p.Step),
	}
}

var _ PricingPolicy = ProportionalPricing{}
