// Package ws bridges the signal bus to websocket clients. Each client is
// bound to one session and receives that session's position, status and
// trade events plus price events for the dock it trades at, as JSON text
// frames.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/server/handler"
	"github.com/alanyoungcy/dockside/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	defaultTradePoll = 250 * time.Millisecond
	tradeBatch       = 256
)

// busPatterns are the signal bus channels the hub subscribes to.
var busPatterns = []string{
	domain.ChannelPositionPrefix + "*",
	domain.ChannelPricePrefix + "*",
	domain.ChannelSessionPrefix + "*",
}

// SessionDirectory resolves the session a websocket client binds to.
type SessionDirectory interface {
	Status(ctx context.Context, id string) (service.StatusView, error)
}

// client represents a single WebSocket connection.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	// allowed is fixed at connect: the session's own channels and its dock's
	// price channel. subs is the subset currently wanted.
	allowed map[string]bool
	subs    map[string]bool
	mu      sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to change its channels,
// e.g. {"action":"unsubscribe","channels":["ch:price:harbor"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// refusedMsg answers a subscribe naming channels outside the client's own.
type refusedMsg struct {
	Type     string   `json:"type"`
	Error    string   `json:"error"`
	Channels []string `json:"channels"`
}

// Hub manages a set of connected WebSocket clients and broadcasts messages
// from the SignalBus to all subscribed clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	sessions   SessionDirectory
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
	tradePoll  time.Duration
	ready      chan struct{}
	done       chan struct{}
}

// broadcastMsg carries a message along with the concrete channel it belongs
// to so the hub can route it only to clients subscribed to that channel.
type broadcastMsg struct {
	channel string
	data    []byte
}

// Config controls which origins may open a websocket and how often the
// trade stream is polled.
type Config struct {
	// AllowedOrigins empty allows every origin.
	AllowedOrigins []string
	TradePoll      time.Duration
}

// NewHub creates a new WebSocket hub that bridges the SignalBus to connected
// WebSocket clients.
func NewHub(bus domain.SignalBus, sessions SessionDirectory, logger *slog.Logger, cfg Config) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		sessions:   sessions,
		logger:     logger.With(slog.String("component", "ws_hub")),
		tradePoll:  cfg.TradePoll,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	if h.tradePoll <= 0 {
		h.tradePoll = defaultTradePoll
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Ready is closed once the hub's bus subscriptions are established.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run starts the hub's main event loop. It handles client registration,
// unregistration, and message broadcasting, and exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for _, pattern := range busPatterns {
		msgCh, err := h.bus.Subscribe(ctx, pattern)
		if err != nil {
			return fmt.Errorf("ws: subscribe %s: %w", pattern, err)
		}
		h.logger.Info("ws: subscribed to channel", slog.String("channel", pattern))
		go h.forward(ctx, pattern, msgCh)
	}
	// The feed starts with trades made after the hub came up.
	cursor, err := h.bus.StreamTail(ctx, domain.StreamTrades)
	if err != nil {
		return fmt.Errorf("ws: seek trade stream: %w", err)
	}
	go h.tailTrades(ctx, cursor)
	close(h.ready)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("session_id", c.sessionID),
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.String("session_id", c.sessionID),
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.channel) {
					select {
					case c.send <- msg.data:
					default:
						// Client's send buffer is full; drop the message.
						h.logger.Warn("ws: dropping message for slow client",
							slog.String("session_id", c.sessionID),
						)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward relays one pattern subscription into the broadcast loop.
func (h *Hub) forward(ctx context.Context, pattern string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", pattern),
				)
				return
			}
			channel, ok := channelOf(pattern, data)
			if !ok {
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// tailTrades polls the trade stream and routes each row to the trading
// session's feed channel. Every replica's hub reads the whole stream, so a
// client sees its trades whichever process executed them.
func (h *Hub) tailTrades(ctx context.Context, cursor string) {
	ticker := time.NewTicker(h.tradePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		msgs, err := h.bus.StreamRead(ctx, domain.StreamTrades, cursor, tradeBatch)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("ws: trade stream read failed", slog.String("error", err.Error()))
			}
			continue
		}
		for _, m := range msgs {
			cursor = m.ID
			ev, err := service.DecodeTradeEvent(m)
			if err != nil {
				h.logger.Warn("ws: skipping trade entry", slog.String("error", err.Error()))
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{channel: domain.TradeChannel(ev.SessionID), data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// channelOf recovers the concrete channel of a pattern message from the
// routing fields every event payload carries.
func channelOf(pattern string, data []byte) (string, bool) {
	var route struct {
		SessionID string `json:"session_id"`
		DockID    string `json:"dock_id"`
	}
	if err := json.Unmarshal(data, &route); err != nil {
		return "", false
	}
	prefix := strings.TrimSuffix(pattern, "*")
	switch prefix {
	case domain.ChannelPricePrefix:
		return prefix + route.DockID, route.DockID != ""
	default:
		return prefix + route.SessionID, route.SessionID != ""
	}
}

// HandleWS upgrades a request for ?session=<id> to a WebSocket connection
// and registers the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, `{"error":"session query parameter required"}`, http.StatusBadRequest)
		return
	}
	status, err := h.sessions.Status(r.Context(), sessionID)
	if err != nil {
		code, msg := handler.StatusFor(err)
		http.Error(w, `{"error":"`+msg+`"}`, code)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, sessionID, status.DockID)
	// Queued before registering; the hub owns c.send once it knows c.
	c.sendInitialStatus(status)

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func newClient(h *Hub, conn *websocket.Conn, sessionID, dockID string) *client {
	c := &client{
		hub:       h,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBufferSize),
		allowed: map[string]bool{
			domain.PositionChannel(sessionID): true,
			domain.SessionChannel(sessionID):  true,
			domain.TradeChannel(sessionID):    true,
			domain.PriceChannel(dockID):       true,
		},
		subs: make(map[string]bool),
	}
	for ch := range c.allowed {
		c.subs[ch] = true
	}
	return c
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int { return h.clientCount() }

// readPump reads subscription changes from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr == nil && sub.Action != "" {
			if refused := c.handleSubscription(sub); len(refused) > 0 {
				c.hub.logger.Warn("ws: subscription refused",
					slog.String("session_id", c.sessionID),
					slog.Any("channels", refused),
				)
				c.reply(refusedMsg{Type: "error", Error: "subscription refused", Channels: refused})
			}
		}
	}
}

// handleSubscription processes subscribe/unsubscribe requests from the
// client. A client may only (re)subscribe to the channels it was given at
// connect; any other name, patterns included, is returned as refused.
func (c *client) handleSubscription(msg subscribeMsg) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var refused []string
	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			if !c.allowed[ch] {
				refused = append(refused, ch)
				continue
			}
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}
	return refused
}

// reply queues a message for this client only. It is dropped once the hub
// has let go of the client, since c.send is closed then.
func (c *client) reply(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// sendInitialStatus pushes the session's current state so the UI can render
// the position before any move happens.
func (c *client) sendInitialStatus(status service.StatusView) {
	msg, err := json.Marshal(service.PositionEvent{
		Type:      service.EventTypePosition,
		SessionID: status.SessionID,
		Value:     status.Position,
		Text:      status.Text,
		Outcome:   "snapshot",
	})
	if err != nil {
		return
	}
	c.send <- msg
}

// isSubscribed checks whether the client is subscribed to the given channel.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

// writePump pumps messages from the hub to the WebSocket connection as text
// frames, with periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
