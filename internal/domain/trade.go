package domain

import "time"

// TradeSide indicates which direction a dock command went.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeOutcome records whether the dock applied a command.
type TradeOutcome string

const (
	TradeOutcomeFilled      TradeOutcome = "filled"
	TradeOutcomeUnavailable TradeOutcome = "rejected_unavailable"
	// TradeOutcomePriceLimit marks a command whose repricing would have left
	// the dock's price band.
	TradeOutcomePriceLimit TradeOutcome = "rejected_price_limit"
)

// Trade is a single ledger row for a buy or sell command at a dock.
type Trade struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	DockID    string       `json:"dock_id"`
	ItemID    ItemID       `json:"item_id"`
	Side      TradeSide    `json:"side"`
	Outcome   TradeOutcome `json:"outcome"`
	BuyPrice  float64      `json:"buy_price"`
	SellPrice float64      `json:"sell_price"`
	Stock     int          `json:"stock"`
	Timestamp time.Time    `json:"timestamp"`
}
