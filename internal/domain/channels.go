package domain

// Signal bus channel prefixes consumed by the UI hub.
const (
	ChannelPositionPrefix = "ch:position:"
	ChannelPricePrefix    = "ch:price:"
	ChannelSessionPrefix  = "ch:session:"
	// ChannelTradePrefix names the per-session trade feed. Nothing publishes
	// on it; the UI hub fills it from StreamTrades.
	ChannelTradePrefix = "ch:trade:"

	// StreamTrades is the durable stream every ledger row is appended to.
	StreamTrades = "stream:trades"
)

// PositionChannel is where position changes for a session are published.
func PositionChannel(sessionID string) string {
	return ChannelPositionPrefix + sessionID
}

// PriceChannel is where price changes for a dock are published.
func PriceChannel(dockID string) string {
	return ChannelPricePrefix + dockID
}

// SessionChannel is where status changes for a session are published.
func SessionChannel(sessionID string) string {
	return ChannelSessionPrefix + sessionID
}

// TradeChannel is the feed of a session's ledger rows.
func TradeChannel(sessionID string) string {
	return ChannelTradePrefix + sessionID
}
