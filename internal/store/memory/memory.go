// Package memory implements the domain store interfaces in process, for
// storage.driver = "memory" and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// SessionStore implements domain.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	rows map[string]domain.SessionRecord
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{rows: make(map[string]domain.SessionRecord)}
}

func (s *SessionStore) Upsert(_ context.Context, rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rec.ID] = rec
	return nil
}

func (s *SessionStore) UpdatePosition(_ context.Context, id string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("memory: update position %s: %w", id, domain.ErrNotFound)
	}
	rec.Position = position
	rec.UpdatedAt = time.Now().UTC()
	s.rows[id] = rec
	return nil
}

func (s *SessionStore) MarkOffline(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("memory: mark offline %s: %w", id, domain.ErrNotFound)
	}
	rec.Status = domain.SessionStatusOffline
	rec.LogoutAt = &at
	rec.UpdatedAt = at
	s.rows[id] = rec
	return nil
}

func (s *SessionStore) GetByID(_ context.Context, id string) (domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[id]
	if !ok {
		return domain.SessionRecord{}, fmt.Errorf("memory: session %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *SessionStore) ListOnline(_ context.Context) ([]domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SessionRecord
	for _, rec := range s.rows {
		if rec.Status == domain.SessionStatusOnline {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DockStore implements domain.DockStore.
type DockStore struct {
	mu    sync.RWMutex
	items map[string]map[domain.ItemID]domain.Item
}

// NewDockStore returns an empty DockStore.
func NewDockStore() *DockStore {
	return &DockStore{items: make(map[string]map[domain.ItemID]domain.Item)}
}

func (s *DockStore) LoadItems(_ context.Context, dockID string) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(s.items[dockID]))
	for _, it := range s.items[dockID] {
		out = append(out, it)
	}
	domain.SortItems(out)
	return out, nil
}

func (s *DockStore) SaveItem(_ context.Context, dockID string, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.items[dockID]
	if !ok {
		d = make(map[domain.ItemID]domain.Item)
		s.items[dockID] = d
	}
	d[item.ID] = item
	return nil
}

// TradeStore implements domain.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	rows []domain.Trade
}

// NewTradeStore returns an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

func (s *TradeStore) Insert(_ context.Context, trade domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.ID == trade.ID {
			return fmt.Errorf("memory: insert trade %s: %w", trade.ID, domain.ErrAlreadyExists)
		}
	}
	s.rows = append(s.rows, trade)
	return nil
}

// ListBySession returns the session's trades, newest first.
func (s *TradeStore) ListBySession(_ context.Context, sessionID string, opts domain.ListOpts) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trade
	for i := len(s.rows) - 1; i >= 0; i-- {
		t := s.rows[i]
		if t.SessionID != sessionID || !inRange(t.Timestamp, opts) {
			continue
		}
		out = append(out, t)
	}
	return page(out, opts), nil
}

func (s *TradeStore) ListBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trade
	for _, t := range s.rows {
		if t.Timestamp.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TradeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	var n int64
	for _, t := range s.rows {
		if t.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.rows = kept
	return n, nil
}

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []domain.AuditEntry
	now    func() time.Time
}

// NewAuditStore returns an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{now: func() time.Time { return time.Now().UTC() }}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows = append(s.rows, domain.AuditEntry{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: s.now(),
	})
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEntry
	for i := len(s.rows) - 1; i >= 0; i-- {
		if inRange(s.rows[i].CreatedAt, opts) {
			out = append(out, s.rows[i])
		}
	}
	return page(out, opts), nil
}

func (s *AuditStore) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEntry
	for _, e := range s.rows {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *AuditStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	var n int64
	for _, e := range s.rows {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.rows = kept
	return n, nil
}

func inRange(ts time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && !ts.Before(*opts.Until) {
		return false
	}
	return true
}

func page[T any](rows []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(rows) {
			return nil
		}
		rows = rows[opts.Offset:]
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}

var (
	_ domain.SessionStore = (*SessionStore)(nil)
	_ domain.DockStore    = (*DockStore)(nil)
	_ domain.TradeStore   = (*TradeStore)(nil)
	_ domain.AuditStore   = (*AuditStore)(nil)
)
