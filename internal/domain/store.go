package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SessionStore persists the session log and each session's last position.
type SessionStore interface {
	Upsert(ctx context.Context, rec SessionRecord) error
	UpdatePosition(ctx context.Context, id string, position int) error
	MarkOffline(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (SessionRecord, error)
	ListOnline(ctx context.Context) ([]SessionRecord, error)
}

// DockStore persists per-dock item prices and stock so shared docks survive
// restarts.
type DockStore interface {
	LoadItems(ctx context.Context, dockID string) ([]Item, error)
	SaveItem(ctx context.Context, dockID string, item Item) error
}

// TradeStore persists the dock trade ledger.
type TradeStore interface {
	Insert(ctx context.Context, trade Trade) error
	ListBySession(ctx context.Context, sessionID string, opts ListOpts) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
