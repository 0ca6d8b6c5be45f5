package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/movement"
	"github.com/alanyoungcy/dockside/internal/session"
)

// StatusView is a session as reported to clients.
type StatusView struct {
	SessionID  string               `json:"session_id"`
	Status     domain.SessionStatus `json:"status"`
	DockID     string               `json:"dock_id"`
	Position   int                  `json:"position"`
	Text       string               `json:"text"`
	LoginAt    time.Time            `json:"login_at"`
	LastMoveAt *time.Time           `json:"last_move_at,omitempty"`
}

func newStatusView(snap session.Snapshot) StatusView {
	v := StatusView{
		SessionID: snap.ID,
		Status:    snap.Status,
		DockID:    snap.DockID,
		Position:  snap.Position.Value,
		Text:      domain.PlaceText(snap.Position.Value),
		LoginAt:   snap.LoginAt,
	}
	if !snap.Position.LastMoveAt.IsZero() {
		t := snap.Position.LastMoveAt
		v.LastMoveAt = &t
	}
	return v
}

// MoveResult reports a move command.
type MoveResult struct {
	SessionID string `json:"session_id"`
	Direction string `json:"direction"`
	From      int    `json:"from"`
	Value     int    `json:"value"`
	Outcome   string `json:"outcome"`
	Text      string `json:"text"`
	Replayed  bool   `json:"replayed,omitempty"`
}

func newMoveResult(sessionID string, m movement.Move) MoveResult {
	return MoveResult{
		SessionID: sessionID,
		Direction: m.Direction.String(),
		From:      m.From,
		Value:     m.To,
		Outcome:   string(m.Outcome),
		Text:      domain.PlaceText(m.To),
	}
}

// ItemView is one dock item as reported to clients.
type ItemView struct {
	ItemID    domain.ItemID `json:"item_id"`
	Name      string        `json:"name"`
	BuyPrice  float64       `json:"buy_price"`
	SellPrice float64       `json:"sell_price"`
	Stock     int           `json:"stock"`
	Text      string        `json:"text"`
}

func newItemView(it domain.Item) ItemView {
	return ItemView{
		ItemID:    it.ID,
		Name:      it.Name,
		BuyPrice:  it.Prices.Buy,
		SellPrice: it.Prices.Sell,
		Stock:     it.Stock,
		Text:      domain.PriceText(it.Prices),
	}
}

// TradeResult reports a buy or sell command.
type TradeResult struct {
	TradeID   string              `json:"trade_id"`
	SessionID string              `json:"session_id"`
	DockID    string              `json:"dock_id"`
	ItemID    domain.ItemID       `json:"item_id"`
	Side      domain.TradeSide    `json:"side"`
	Outcome   domain.TradeOutcome `json:"outcome"`
	BuyPrice  float64             `json:"buy_price"`
	SellPrice float64             `json:"sell_price"`
	Stock     int                 `json:"stock"`
	Text      string              `json:"text"`
	Replayed  bool                `json:"replayed,omitempty"`
}

func newTradeResult(t domain.Trade) TradeResult {
	return TradeResult{
		TradeID:   t.ID,
		SessionID: t.SessionID,
		DockID:    t.DockID,
		ItemID:    t.ItemID,
		Side:      t.Side,
		Outcome:   t.Outcome,
		BuyPrice:  t.BuyPrice,
		SellPrice: t.SellPrice,
		Stock:     t.Stock,
		Text:      domain.PriceText(domain.Prices{Buy: t.BuyPrice, Sell: t.SellPrice}),
	}
}

func newPriceEvent(dockID string, it domain.Item) PriceEvent {
	return PriceEvent{
		Type:      EventTypePrice,
		DockID:    dockID,
		ItemID:    it.ID,
		Text:      domain.PriceText(it.Prices),
		BuyPrice:  it.Prices.Buy,
		SellPrice: it.Prices.Sell,
		Stock:     it.Stock,
	}
}

// Overview summarises the running game.
type Overview struct {
	OnlineSessions int        `json:"online_sessions"`
	DockID         string     `json:"dock_id"`
	SharedDock     bool       `json:"shared_dock"`
	Items          []ItemView `json:"items,omitempty"`
}

func marshalTrade(t domain.Trade) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTradeEvent turns a trade stream entry into the event sent to the
// trading session's clients.
func DecodeTradeEvent(msg domain.StreamMessage) (TradeEvent, error) {
	var t domain.Trade
	if err := json.Unmarshal(msg.Payload, &t); err != nil {
		return TradeEvent{}, fmt.Errorf("service: decode trade %s: %w", msg.ID, err)
	}
	if t.SessionID == "" {
		return TradeEvent{}, fmt.Errorf("service: decode trade %s: missing session id", msg.ID)
	}
	return TradeEvent{Type: EventTypeTrade, StreamID: msg.ID, TradeResult: newTradeResult(t)}, nil
}
