package domain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// PriceText renders a price pair as "<buy>/<sell>". Each side uses the
// shortest decimal that round-trips to the same float64, so two distinct
// prices never render identically. NaN and infinities render as "NaN",
// "+Inf" and "-Inf".
func PriceText(p Prices) string {
	return priceString(p.Buy) + "/" + priceString(p.Sell)
}

func priceString(v float64) string {
	// decimal.NewFromFloat panics on values it cannot represent.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}

// PlaceText renders a position the way the UI displays it, e.g. "Place [-19]".
// Clients recover the value by parsing the bracketed integer.
func PlaceText(value int) string {
	return fmt.Sprintf("Place [%d]", value)
}
