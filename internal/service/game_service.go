package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/movement"
	"github.com/alanyoungcy/dockside/internal/session"
	"github.com/alanyoungcy/dockside/internal/trading"
)

// Notification event types.
const (
	NotifySessionOnline  = "session_online"
	NotifyStockExhausted = "stock_exhausted"
	NotifyPriceLimit     = "price_limit"
	NotifyError          = "error"
)

const (
	defaultLockTTL   = 5 * time.Second
	defaultLockWait  = 2 * time.Second
	lockPollInterval = 20 * time.Millisecond
	notifyTimeout    = 15 * time.Second
)

// Notifier delivers operator notifications. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config tunes the game service.
type Config struct {
	Session   session.Config
	Catalog   trading.Catalog
	PriceStep float64
	// LockTTL bounds how long a shared-dock lock may be held.
	LockTTL time.Duration
	// LockWait is how long a command waits for a held dock lock.
	LockWait time.Duration
	DedupTTL time.Duration
}

// Deps are the collaborators of the game service. Prices, Locks, Notifier
// and Clock are optional.
type Deps struct {
	Sessions domain.SessionStore
	Docks    domain.DockStore
	Trades   domain.TradeStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Prices   domain.PriceCache
	Locks    domain.LockManager
	Notifier Notifier
	Clock    movement.Clock
	Logger   *slog.Logger
}

// GameService is the single entry point for session, movement and dock
// commands. It owns the session manager and fans state changes out to the
// signal bus, the stores and the price cache.
type GameService struct {
	cfg          Config
	sessions     *session.Manager
	sessionStore domain.SessionStore
	dockStore    domain.DockStore
	trades       domain.TradeStore
	audit        domain.AuditStore
	bus          domain.SignalBus
	prices       domain.PriceCache
	locks        domain.LockManager
	notifier     Notifier
	clock        movement.Clock
	dedup        *Dedup
	logger       *slog.Logger

	pending sync.WaitGroup
}

// NewGameService wires the session manager and restores the shared dock from
// the dock store.
func NewGameService(ctx context.Context, cfg Config, deps Deps) (*GameService, error) {
	if deps.Sessions == nil || deps.Docks == nil || deps.Trades == nil || deps.Audit == nil || deps.Bus == nil {
		return nil, errors.New("game_service: stores and bus are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = movement.SystemClock{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	if cfg.PriceStep == 0 {
		cfg.PriceStep = trading.DefaultPriceStep
	}
	if len(cfg.Catalog.Items) == 0 {
		cfg.Catalog = trading.DefaultCatalog()
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("game_service: %w", err)
	}
	pricing, err := trading.NewProportionalPricing(cfg.PriceStep)
	if err != nil {
		return nil, fmt.Errorf("game_service: %w", err)
	}

	s := &GameService{
		cfg:          cfg,
		sessionStore: deps.Sessions,
		dockStore:    deps.Docks,
		trades:       deps.Trades,
		audit:        deps.Audit,
		bus:          deps.Bus,
		prices:       deps.Prices,
		locks:        deps.Locks,
		notifier:     deps.Notifier,
		clock:        deps.Clock,
		dedup:        NewDedup(cfg.DedupTTL, deps.Clock),
		logger:       deps.Logger.With(slog.String("component", "game_service")),
	}

	newDock := func(id string) (*trading.Dock, error) {
		return cfg.Catalog.NewDock(id,
			trading.WithPricing(pricing),
			trading.WithObserver(trading.ObserverFunc(s.itemChanged)),
		)
	}
	s.sessions, err = session.NewManager(cfg.Session, newDock,
		session.WithClock(deps.Clock),
		session.WithObserverFactory(s.positionObserver),
	)
	if err != nil {
		return nil, fmt.Errorf("game_service: %w", err)
	}

	if shared := s.sessions.SharedDock(); shared != nil {
		if err := s.restoreDock(ctx, shared); err != nil {
			return nil, err
		}
		s.mirrorDock(ctx, shared)
	}
	return s, nil
}

func (s *GameService) restoreDock(ctx context.Context, d *trading.Dock) error {
	n, err := s.reloadDock(ctx, d)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "game_service: dock restored",
			slog.String("dock_id", d.ID()),
			slog.Int("items", n),
		)
	}
	return nil
}

// reloadDock overwrites d with the dock store's copy of its items.
func (s *GameService) reloadDock(ctx context.Context, d *trading.Dock) (int, error) {
	items, err := s.dockStore.LoadItems(ctx, d.ID())
	if err != nil {
		return 0, fmt.Errorf("game_service: load dock %s: %w", d.ID(), err)
	}
	n, err := d.Restore(items)
	if err != nil {
		return 0, fmt.Errorf("game_service: %w", err)
	}
	return n, nil
}

// replicated reports whether d is the shared dock and other processes may
// trade against it through the dock store and lock manager.
func (s *GameService) replicated(d *trading.Dock) bool {
	return s.locks != nil && d == s.sessions.SharedDock()
}

// dockItems returns d's items as last persisted, falling back to the local
// copy for items never traded or when the store cannot be read.
func (s *GameService) dockItems(ctx context.Context, d *trading.Dock) []domain.Item {
	local := d.Items()
	if !s.replicated(d) {
		return local
	}
	stored, err := s.dockStore.LoadItems(ctx, d.ID())
	if err != nil {
		s.logger.WarnContext(ctx, "game_service: load dock failed, serving local copy",
			slog.String("dock_id", d.ID()),
			slog.String("error", err.Error()),
		)
		return local
	}
	byID := make(map[domain.ItemID]domain.Item, len(stored))
	for _, it := range stored {
		byID[it.ID] = it
	}
	for i, it := range local {
		if st, ok := byID[it.ID]; ok {
			st.Name = it.Name
			local[i] = st
		}
	}
	return local
}

// Dedup exposes the command dedup table so the app can schedule its cleanup.
func (s *GameService) Dedup() *Dedup { return s.dedup }

// Close waits for in-flight notifications.
func (s *GameService) Close() {
	s.pending.Wait()
}

// Login admits a session id. Logging in again with an online id returns the
// existing session unchanged.
func (s *GameService) Login(ctx context.Context, id string) (StatusView, error) {
	sess, created, err := s.sessions.Login(ctx, id)
	if err != nil {
		return StatusView{}, fmt.Errorf("game_service: login: %w", err)
	}
	snap := sess.Snapshot()
	if !created {
		return newStatusView(snap), nil
	}

	now := s.clock.Now().UTC()
	if err := s.sessionStore.Upsert(ctx, domain.SessionRecord{
		ID:        id,
		DockID:    snap.DockID,
		Status:    domain.SessionStatusOnline,
		Position:  snap.Position.Value,
		LoginAt:   snap.LoginAt,
		UpdatedAt: now,
	}); err != nil {
		s.logger.WarnContext(ctx, "game_service: persist session failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
	if s.sessions.SharedDock() == nil {
		s.mirrorDock(ctx, sess.Dock())
	}

	s.publish(ctx, domain.SessionChannel(id), SessionEvent{
		Type:      EventTypeSession,
		SessionID: id,
		Status:    domain.SessionStatusOnline,
	})
	s.auditLog(ctx, "session_login", map[string]any{
		"session_id": id,
		"dock_id":    snap.DockID,
	})
	s.notify(NotifySessionOnline, "Session online", fmt.Sprintf("%s logged in at %s", id, snap.DockID))

	s.logger.InfoContext(ctx, "game_service: session online",
		slog.String("session_id", id),
		slog.String("dock_id", snap.DockID),
	)
	return newStatusView(snap), nil
}

// Logout takes a session offline.
func (s *GameService) Logout(ctx context.Context, id string) (StatusView, error) {
	sess, err := s.sessions.Logout(id)
	if err != nil {
		return StatusView{}, fmt.Errorf("game_service: logout: %w", err)
	}
	snap := sess.Snapshot()

	if err := s.sessionStore.MarkOffline(ctx, id, s.clock.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "game_service: persist logout failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.dedup.Forget(id)
	s.publish(ctx, domain.SessionChannel(id), SessionEvent{
		Type:      EventTypeSession,
		SessionID: id,
		Status:    domain.SessionStatusOffline,
	})
	s.auditLog(ctx, "session_logout", map[string]any{
		"session_id": id,
		"position":   snap.Position.Value,
	})
	return newStatusView(snap), nil
}

// Status returns a session's current state.
func (s *GameService) Status(_ context.Context, id string) (StatusView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return StatusView{}, fmt.Errorf("game_service: status: %w", err)
	}
	return newStatusView(sess.Snapshot()), nil
}

// Online lists the online sessions.
func (s *GameService) Online() []StatusView {
	list := s.sessions.List()
	out := make([]StatusView, 0, len(list))
	for _, sess := range list {
		out = append(out, newStatusView(sess.Snapshot()))
	}
	return out
}

// MoveLeft attempts to move the session one step left.
func (s *GameService) MoveLeft(ctx context.Context, id string) (MoveResult, error) {
	return s.move(ctx, id, movement.Left)
}

// MoveRight attempts to move the session one step right.
func (s *GameService) MoveRight(ctx context.Context, id string) (MoveResult, error) {
	return s.move(ctx, id, movement.Right)
}

func (s *GameService) move(ctx context.Context, id string, dir movement.Direction) (MoveResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return MoveResult{}, fmt.Errorf("game_service: move %s: %w", dir, err)
	}

	var res MoveResult
	err = sess.Do(func(c *movement.Controller, _ *trading.Dock) error {
		r, replayed, err := deduped(ctx, s.dedup, id, "move_"+dir.String(), func() (MoveResult, error) {
			var m movement.Move
			if dir == movement.Left {
				m = c.MoveLeft(ctx)
			} else {
				m = c.MoveRight(ctx)
			}
			if m.Outcome == movement.OutcomeMoved {
				s.persistPosition(ctx, id, m.To)
			}
			return newMoveResult(id, m), nil
		})
		r.Replayed = replayed
		res = r
		return err
	})
	if err != nil {
		return MoveResult{}, err
	}

	s.logger.DebugContext(ctx, "game_service: move",
		slog.String("session_id", id),
		slog.String("direction", dir.String()),
		slog.String("outcome", res.Outcome),
		slog.Int("value", res.Value),
	)
	return res, nil
}

// positionObserver publishes accepted moves before they are committed.
func (s *GameService) positionObserver(sessionID string) movement.Observer {
	return movement.ObserverFunc(func(ctx context.Context, ev movement.Event) {
		s.publish(ctx, domain.PositionChannel(sessionID), PositionEvent{
			Type:      EventTypePosition,
			SessionID: sessionID,
			Value:     ev.To,
			Text:      domain.PlaceText(ev.To),
			Outcome:   string(movement.OutcomeMoved),
		})
	})
}

func (s *GameService) persistPosition(ctx context.Context, id string, value int) {
	if err := s.sessionStore.UpdatePosition(ctx, id, value); err != nil {
		s.logger.WarnContext(ctx, "game_service: persist position failed",
			slog.String("session_id", id),
			slog.Int("value", value),
			slog.String("error", err.Error()),
		)
	}
}

// Buy buys one unit of an item at the session's dock.
func (s *GameService) Buy(ctx context.Context, id string, item domain.ItemID) (TradeResult, error) {
	return s.trade(ctx, id, item, domain.TradeSideBuy)
}

// Sell sells one unit of an item at the session's dock. With no stock the
// result carries the unavailable outcome and the quote is unchanged.
func (s *GameService) Sell(ctx context.Context, id string, item domain.ItemID) (TradeResult, error) {
	return s.trade(ctx, id, item, domain.TradeSideSell)
}

func (s *GameService) trade(ctx context.Context, id string, item domain.ItemID, side domain.TradeSide) (TradeResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TradeResult{}, fmt.Errorf("game_service: %s: %w", side, err)
	}

	var res TradeResult
	err = sess.Do(func(_ *movement.Controller, d *trading.Dock) error {
		op := string(side) + "_" + strconv.Itoa(int(item))
		r, replayed, err := deduped(ctx, s.dedup, id, op, func() (TradeResult, error) {
			return s.execTrade(ctx, id, d, item, side)
		})
		r.Replayed = replayed
		res = r
		return err
	})
	if err != nil {
		return TradeResult{}, err
	}
	return res, nil
}

func (s *GameService) execTrade(ctx context.Context, sessionID string, d *trading.Dock, item domain.ItemID, side domain.TradeSide) (TradeResult, error) {
	if s.replicated(d) {
		unlock, err := s.acquireDockLock(ctx, d.ID())
		if err != nil {
			return TradeResult{}, fmt.Errorf("game_service: %s %d: %w", side, item, err)
		}
		// The observer persists the new state before unlock runs, so the
		// next holder on any replica reloads it.
		defer unlock()
		if _, err := s.reloadDock(ctx, d); err != nil {
			return TradeResult{}, fmt.Errorf("game_service: %s %d: %w", side, item, err)
		}
	}

	var q trading.Quote
	var err error
	if side == domain.TradeSideBuy {
		q, err = d.Buy(ctx, item)
	} else {
		q, err = d.Sell(ctx, item)
	}
	if err != nil {
		return TradeResult{}, fmt.Errorf("game_service: %s: %w", side, err)
	}

	trade := domain.Trade{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		DockID:    d.ID(),
		ItemID:    item,
		Side:      side,
		Outcome:   q.Outcome,
		BuyPrice:  q.Prices.Buy,
		SellPrice: q.Prices.Sell,
		Stock:     q.Stock,
		Timestamp: s.clock.Now().UTC(),
	}
	s.recordTrade(ctx, trade)

	switch {
	case side == domain.TradeSideSell && q.Filled() && q.Stock == 0:
		s.notify(NotifyStockExhausted, "Stock exhausted",
			fmt.Sprintf("item %d at %s sold out at %s", item, d.ID(), domain.PriceText(q.Prices)))
	case q.Outcome == domain.TradeOutcomePriceLimit:
		s.notify(NotifyPriceLimit, "Price limit reached",
			fmt.Sprintf("%s of item %d at %s refused at %s", side, item, d.ID(), domain.PriceText(q.Prices)))
	}

	s.logger.InfoContext(ctx, "game_service: trade",
		slog.String("session_id", sessionID),
		slog.String("dock_id", d.ID()),
		slog.Int("item_id", int(item)),
		slog.String("side", string(side)),
		slog.String("outcome", string(q.Outcome)),
		slog.String("prices", domain.PriceText(q.Prices)),
		slog.Int("stock", q.Stock),
	)
	return newTradeResult(trade), nil
}

func (s *GameService) acquireDockLock(ctx context.Context, dockID string) (func(), error) {
	key := "dock:" + dockID
	deadline := time.NewTimer(s.cfg.LockWait)
	defer deadline.Stop()

	for {
		unlock, err := s.locks.Acquire(ctx, key, s.cfg.LockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}

		poll := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			poll.Stop()
			return nil, ctx.Err()
		case <-deadline.C:
			poll.Stop()
			return nil, err
		case <-poll.C:
		}
	}
}

func (s *GameService) recordTrade(ctx context.Context, trade domain.Trade) {
	if err := s.trades.Insert(ctx, trade); err != nil {
		s.logger.ErrorContext(ctx, "game_service: persist trade failed",
			slog.String("trade_id", trade.ID),
			slog.String("error", err.Error()),
		)
		s.notify(NotifyError, "Trade ledger write failed", fmt.Sprintf("trade %s: %v", trade.ID, err))
	}
	if payload, err := marshalTrade(trade); err == nil {
		if err := s.bus.StreamAppend(ctx, domain.StreamTrades, payload); err != nil {
			s.logger.WarnContext(ctx, "game_service: stream append failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.auditLog(ctx, "trade_"+string(trade.Side), map[string]any{
		"trade_id":   trade.ID,
		"session_id": trade.SessionID,
		"dock_id":    trade.DockID,
		"item_id":    int(trade.ItemID),
		"outcome":    string(trade.Outcome),
		"buy_price":  trade.BuyPrice,
		"sell_price": trade.SellPrice,
		"stock":      trade.Stock,
	})
}

// itemChanged runs under the dock's lock for every filled trade.
func (s *GameService) itemChanged(ctx context.Context, dockID string, item domain.Item, _ domain.TradeSide) {
	s.publish(ctx, domain.PriceChannel(dockID), newPriceEvent(dockID, item))

	if s.prices != nil {
		if err := s.prices.SetPrices(ctx, dockID, item, s.clock.Now().UTC()); err != nil {
			s.logger.WarnContext(ctx, "game_service: price cache update failed",
				slog.String("dock_id", dockID),
				slog.String("error", err.Error()),
			)
		}
	}

	if shared := s.sessions.SharedDock(); shared != nil && shared.ID() == dockID {
		if err := s.dockStore.SaveItem(ctx, dockID, item); err != nil {
			s.logger.WarnContext(ctx, "game_service: persist dock item failed",
				slog.String("dock_id", dockID),
				slog.Int("item_id", int(item.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *GameService) mirrorDock(ctx context.Context, d *trading.Dock) {
	if s.prices == nil {
		return
	}
	now := s.clock.Now().UTC()
	for _, it := range d.Items() {
		if err := s.prices.SetPrices(ctx, d.ID(), it, now); err != nil {
			s.logger.WarnContext(ctx, "game_service: seed price cache failed",
				slog.String("dock_id", d.ID()),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// Prices returns the quote for one item at the session's dock.
func (s *GameService) Prices(ctx context.Context, id string, item domain.ItemID) (ItemView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return ItemView{}, fmt.Errorf("game_service: prices: %w", err)
	}
	d := sess.Dock()
	if _, err := d.Item(item); err != nil {
		return ItemView{}, fmt.Errorf("game_service: prices: %w", err)
	}
	for _, it := range s.dockItems(ctx, d) {
		if it.ID == item {
			return newItemView(it), nil
		}
	}
	return ItemView{}, fmt.Errorf("game_service: prices: item %d: %w", item, domain.ErrUnknownItem)
}

// Items lists every item at the session's dock.
func (s *GameService) Items(ctx context.Context, id string) ([]ItemView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("game_service: items: %w", err)
	}
	items := s.dockItems(ctx, sess.Dock())
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, newItemView(it))
	}
	return out, nil
}

// Trades returns the session's ledger, newest first.
func (s *GameService) Trades(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Trade, error) {
	if _, err := s.sessions.Get(id); err != nil {
		return nil, fmt.Errorf("game_service: trades: %w", err)
	}
	trades, err := s.trades.ListBySession(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("game_service: trades for %s: %w", id, err)
	}
	return trades, nil
}

// Overview summarises the running game for the status endpoint.
func (s *GameService) Overview(ctx context.Context) Overview {
	cfg := s.sessions.Config()
	o := Overview{
		OnlineSessions: s.sessions.Count(),
		DockID:         cfg.DockID,
		SharedDock:     cfg.SharedDock,
	}
	if shared := s.sessions.SharedDock(); shared != nil {
		for _, it := range s.dockItems(ctx, shared) {
			o.Items = append(o.Items, newItemView(it))
		}
	}
	return o
}

func (s *GameService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "game_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// notify delivers in the background so slow webhooks never stall a command.
func (s *GameService) notify(event, title, message string) {
	if s.notifier == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, event, title, message); err != nil {
			s.logger.WarnContext(ctx, "game_service: notify failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}
