package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "dockside.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dockside.db")
	for i := 0; i < 2; i++ {
		db, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		if err := db.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		_ = db.Close()
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(openTestDB(t))
	login := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	if err := s.UpdatePosition(ctx, "ghost", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("UpdatePosition(ghost) err = %v, want ErrNotFound", err)
	}

	for _, id := range []string{"bob", "alice"} {
		if err := s.Upsert(ctx, domain.SessionRecord{ID: id, DockID: "harbor", Status: domain.SessionStatusOnline, LoginAt: login}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	if err := s.UpdatePosition(ctx, "alice", -3); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}

	got, err := s.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Position != -3 || !got.LoginAt.Equal(login) || got.LogoutAt != nil || got.DockID != "harbor" {
		t.Errorf("GetByID = %+v", got)
	}

	out := login.Add(time.Hour)
	if err := s.MarkOffline(ctx, "bob", out); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	bob, _ := s.GetByID(ctx, "bob")
	if bob.Status != domain.SessionStatusOffline || bob.LogoutAt == nil || !bob.LogoutAt.Equal(out) {
		t.Errorf("bob after logout = %+v", bob)
	}

	online, err := s.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if len(online) != 1 || online[0].ID != "alice" {
		t.Errorf("ListOnline = %+v", online)
	}

	if _, err := s.GetByID(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID(ghost) err = %v, want ErrNotFound", err)
	}
}

func TestDockStore(t *testing.T) {
	ctx := context.Background()
	s := NewDockStore(openTestDB(t))

	items, err := s.LoadItems(ctx, "harbor")
	if err != nil || len(items) != 0 {
		t.Fatalf("LoadItems(empty) = %v, %v", items, err)
	}

	water := domain.Item{ID: domain.ItemWater, Name: "water", Prices: domain.Prices{Buy: 20, Sell: 15}, Stock: 10}
	medicine := domain.Item{ID: domain.ItemMedicine, Name: "medicine", Prices: domain.Prices{Buy: 120, Sell: 90}, Stock: 5}
	for _, it := range []domain.Item{water, medicine} {
		if err := s.SaveItem(ctx, "harbor", it); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}
	water.Stock = 9
	water.Prices = domain.Prices{Buy: 21, Sell: 14.25}
	if err := s.SaveItem(ctx, "harbor", water); err != nil {
		t.Fatalf("SaveItem update: %v", err)
	}

	items, err = s.LoadItems(ctx, "harbor")
	if err != nil {
		t.Fatalf("LoadItems: %v", err)
	}
	if len(items) != 2 || items[0] != medicine || items[1] != water {
		t.Errorf("LoadItems = %+v", items)
	}
}

func TestTradeStore(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore(openTestDB(t))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id, session string, at time.Duration) domain.Trade {
		return domain.Trade{
			ID: id, SessionID: session, DockID: "harbor", ItemID: domain.ItemWater,
			Side: domain.TradeSideBuy, Outcome: domain.TradeOutcomeFilled,
			BuyPrice: 21, SellPrice: 14.25, Stock: 11, Timestamp: base.Add(at),
		}
	}
	for _, tr := range []domain.Trade{mk("t1", "alice", 0), mk("t2", "alice", time.Minute), mk("t3", "bob", 2*time.Minute), mk("t4", "alice", 3*time.Minute)} {
		if err := s.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert %s: %v", tr.ID, err)
		}
	}
	if err := s.Insert(ctx, mk("t1", "alice", 0)); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate Insert err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.ListBySession(ctx, "alice", domain.ListOpts{})
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 3 || got[0].ID != "t4" || got[2].ID != "t1" {
		t.Fatalf("ListBySession = %+v", got)
	}
	if got[0] != mk("t4", "alice", 3*time.Minute) {
		t.Errorf("round trip = %+v", got[0])
	}

	paged, _ := s.ListBySession(ctx, "alice", domain.ListOpts{Offset: 1})
	if len(paged) != 2 || paged[0].ID != "t2" {
		t.Errorf("offset page = %+v", paged)
	}
	since := base.Add(30 * time.Second)
	ranged, _ := s.ListBySession(ctx, "alice", domain.ListOpts{Since: &since, Limit: 1})
	if len(ranged) != 1 || ranged[0].ID != "t4" {
		t.Errorf("since+limit = %+v", ranged)
	}

	cutoff := base.Add(90 * time.Second)
	old, err := s.ListBefore(ctx, cutoff)
	if err != nil || len(old) != 2 || old[0].ID != "t1" {
		t.Fatalf("ListBefore = %+v, %v", old, err)
	}
	n, err := s.DeleteBefore(ctx, cutoff)
	if err != nil || n != 2 {
		t.Fatalf("DeleteBefore = %d, %v", n, err)
	}
	rest, _ := s.ListBySession(ctx, "alice", domain.ListOpts{})
	if len(rest) != 1 || rest[0].ID != "t4" {
		t.Errorf("after delete = %+v", rest)
	}
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(openTestDB(t))
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Log(ctx, "session_login", map[string]any{"session_id": "alice"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	now = now.Add(time.Hour)
	if err := s.Log(ctx, "trade_buy", map[string]any{"item_id": float64(1008)}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := s.List(ctx, domain.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Event != "trade_buy" || entries[0].Detail["item_id"] != float64(1008) {
		t.Fatalf("List = %+v", entries)
	}

	cutoff := now.Add(-time.Minute)
	old, _ := s.ListBefore(ctx, cutoff)
	if len(old) != 1 || old[0].Event != "session_login" {
		t.Errorf("ListBefore = %+v", old)
	}
	if n, err := s.DeleteBefore(ctx, cutoff); err != nil || n != 1 {
		t.Errorf("DeleteBefore = %d, %v", n, err)
	}
}
