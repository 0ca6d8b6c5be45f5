package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// SessionStore implements domain.SessionStore.
type SessionStore struct {
	db *sql.DB
	// now stamps updated_at; swapped in tests.
	now func() time.Time
}

// NewSessionStore creates a SessionStore on d.
func NewSessionStore(d *DB) *SessionStore {
	return &SessionStore{db: d.db, now: time.Now}
}

const sessionSelectCols = `id, dock_id, status, position, login_at, logout_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var status string
	var loginAt, updatedAt int64
	var logoutAt sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.DockID, &status, &rec.Position, &loginAt, &logoutAt, &updatedAt); err != nil {
		return domain.SessionRecord{}, err
	}
	rec.Status = domain.SessionStatus(status)
	rec.LoginAt = fromNanos(loginAt)
	rec.UpdatedAt = fromNanos(updatedAt)
	if logoutAt.Valid {
		t := fromNanos(logoutAt.Int64)
		rec.LogoutAt = &t
	}
	return rec, nil
}

func (s *SessionStore) Upsert(ctx context.Context, rec domain.SessionRecord) error {
	const query = `
		INSERT INTO sessions (id, dock_id, status, position, login_at, logout_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			dock_id    = excluded.dock_id,
			status     = excluded.status,
			position   = excluded.position,
			login_at   = excluded.login_at,
			logout_at  = excluded.logout_at,
			updated_at = excluded.updated_at`

	var logoutAt sql.NullInt64
	if rec.LogoutAt != nil {
		logoutAt = sql.NullInt64{Int64: toNanos(*rec.LogoutAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.DockID, string(rec.Status), rec.Position,
		toNanos(rec.LoginAt), logoutAt, toNanos(s.now()))
	if err != nil {
		return fmt.Errorf("sqlite: upsert session %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SessionStore) UpdatePosition(ctx context.Context, id string, position int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET position = ?, updated_at = ? WHERE id = ?`,
		position, toNanos(s.now()), id)
	if err != nil {
		return fmt.Errorf("sqlite: update position %s: %w", id, err)
	}
	return requireRow(res, "update position", id)
}

func (s *SessionStore) MarkOffline(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, logout_at = ?, updated_at = ? WHERE id = ?`,
		string(domain.SessionStatusOffline), toNanos(at), toNanos(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: mark offline %s: %w", id, err)
	}
	return requireRow(res, "mark offline", id)
}

func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: %s %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: %s %s: %w", op, id, domain.ErrNotFound)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (domain.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionSelectCols+` FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionRecord{}, fmt.Errorf("sqlite: session %s: %w", id, domain.ErrNotFound)
		}
		return domain.SessionRecord{}, fmt.Errorf("sqlite: get session %s: %w", id, err)
	}
	return rec, nil
}

func (s *SessionStore) ListOnline(ctx context.Context) ([]domain.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionSelectCols+` FROM sessions WHERE status = ? ORDER BY id`,
		string(domain.SessionStatusOnline))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list online sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DockStore implements domain.DockStore.
type DockStore struct {
	db *sql.DB
}

// NewDockStore creates a DockStore on d.
func NewDockStore(d *DB) *DockStore {
	return &DockStore{db: d.db}
}

func (s *DockStore) LoadItems(ctx context.Context, dockID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, buy_price, sell_price, stock
		FROM dock_items WHERE dock_id = ? ORDER BY item_id`, dockID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load dock %s: %w", dockID, err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		var id int
		if err := rows.Scan(&id, &it.Name, &it.Prices.Buy, &it.Prices.Sell, &it.Stock); err != nil {
			return nil, fmt.Errorf("sqlite: scan dock item: %w", err)
		}
		it.ID = domain.ItemID(id)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *DockStore) SaveItem(ctx context.Context, dockID string, item domain.Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dock_items (dock_id, item_id, name, buy_price, sell_price, stock, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dock_id, item_id) DO UPDATE SET
			name       = excluded.name,
			buy_price  = excluded.buy_price,
			sell_price = excluded.sell_price,
			stock      = excluded.stock,
			updated_at = excluded.updated_at`,
		dockID, int(item.ID), item.Name, item.Prices.Buy, item.Prices.Sell, item.Stock, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: save dock item %s/%d: %w", dockID, item.ID, err)
	}
	return nil
}

// TradeStore implements domain.TradeStore.
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore creates a TradeStore on d.
func NewTradeStore(d *DB) *TradeStore {
	return &TradeStore{db: d.db}
}

const tradeSelectCols = `id, session_id, dock_id, item_id, side, outcome, buy_price, sell_price, stock, ts`

func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	defer rows.Close()
	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var itemID int
		var side, outcome string
		var ts int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.DockID, &itemID, &side, &outcome,
			&t.BuyPrice, &t.SellPrice, &t.Stock, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan trade: %w", err)
		}
		t.ItemID = domain.ItemID(itemID)
		t.Side = domain.TradeSide(side)
		t.Outcome = domain.TradeOutcome(outcome)
		t.Timestamp = fromNanos(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Insert appends a trade. A duplicate id returns domain.ErrAlreadyExists.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, session_id, dock_id, item_id, side, outcome, buy_price, sell_price, stock, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.SessionID, t.DockID, int(t.ItemID), string(t.Side), string(t.Outcome),
		t.BuyPrice, t.SellPrice, t.Stock, toNanos(t.Timestamp))
	if err != nil {
		return fmt.Errorf("sqlite: insert trade %s: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlite: insert trade %s: %w", t.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// ListBySession returns a session's trades, newest first.
func (s *TradeStore) ListBySession(ctx context.Context, sessionID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query, args := listQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE session_id = ?`,
		[]any{sessionID}, "ts", "ts DESC, seq DESC", opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades for %s: %w", sessionID, err)
	}
	return scanTrades(rows)
}

// ListBefore returns trades older than before, oldest first.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE ts < ? ORDER BY ts, seq`, toNanos(before))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades before: %w", err)
	}
	return scanTrades(rows)
}

func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE ts < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete trades before: %w", err)
	}
	return res.RowsAffected()
}

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditStore creates an AuditStore on d.
func NewAuditStore(d *DB) *AuditStore {
	return &AuditStore{db: d.db, now: time.Now}
}

func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("sqlite: marshal audit detail: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event, detail, created_at) VALUES (?, ?, ?)`,
		event, string(detailJSON), toNanos(s.now())); err != nil {
		return fmt.Errorf("sqlite: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := listQuery(`SELECT id, event, detail, created_at FROM audit_log WHERE 1=1`,
		nil, "created_at", "created_at DESC, id DESC", opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries: %w", err)
	}
	return scanAudit(rows)
}

func (s *AuditStore) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, detail, created_at FROM audit_log WHERE created_at < ? ORDER BY created_at, id`,
		toNanos(before))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries before: %w", err)
	}
	return scanAudit(rows)
}

func (s *AuditStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete audit entries before: %w", err)
	}
	return res.RowsAffected()
}

func scanAudit(rows *sql.Rows) ([]domain.AuditEntry, error) {
	defer rows.Close()
	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var detail sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.Event, &detail, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		e.CreatedAt = fromNanos(created)
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var (
	_ domain.SessionStore = (*SessionStore)(nil)
	_ domain.DockStore    = (*DockStore)(nil)
	_ domain.TradeStore   = (*TradeStore)(nil)
	_ domain.AuditStore   = (*AuditStore)(nil)
)
