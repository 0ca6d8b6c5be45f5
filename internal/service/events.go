package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// Payload types published on the signal bus. The UI hub forwards them to
// websocket clients verbatim.
const (
	EventTypePosition = "position"
	EventTypePrice    = "price"
	EventTypeSession  = "session"
	EventTypeTrade    = "trade"
)

// PositionEvent is published on domain.PositionChannel.
type PositionEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Value     int    `json:"value"`
	Text      string `json:"text"`
	Outcome   string `json:"outcome"`
}

// PriceEvent is published on domain.PriceChannel.
type PriceEvent struct {
	Type      string        `json:"type"`
	DockID    string        `json:"dock_id"`
	ItemID    domain.ItemID `json:"item_id"`
	Text      string        `json:"text"`
	BuyPrice  float64       `json:"buy_price"`
	SellPrice float64       `json:"sell_price"`
	Stock     int           `json:"stock"`
}

// SessionEvent is published on domain.SessionChannel.
type SessionEvent struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id"`
	Status    domain.SessionStatus `json:"status"`
}

// TradeEvent is a ledger row read back from domain.StreamTrades. StreamID
// lets a client notice gaps after a reconnect.
type TradeEvent struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	TradeResult
}

func (s *GameService) publish(ctx context.Context, channel string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(ctx, "game_service: marshal event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "game_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
