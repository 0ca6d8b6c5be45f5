package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new SessionStore backed by the given connection pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const sessionSelectCols = `id, dock_id, status, position, login_at, logout_at, updated_at`

func scanSession(row pgx.Row) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var status string
	if err := row.Scan(&rec.ID, &rec.DockID, &status, &rec.Position,
		&rec.LoginAt, &rec.LogoutAt, &rec.UpdatedAt); err != nil {
		return domain.SessionRecord{}, err
	}
	rec.Status = domain.SessionStatus(status)
	return rec, nil
}

// Upsert writes the full session record. A relogin resets status, position
// and logout time.
func (s *SessionStore) Upsert(ctx context.Context, rec domain.SessionRecord) error {
	const query = `
		INSERT INTO sessions (id, dock_id, status, position, login_at, logout_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			dock_id    = EXCLUDED.dock_id,
			status     = EXCLUDED.status,
			position   = EXCLUDED.position,
			login_at   = EXCLUDED.login_at,
			logout_at  = EXCLUDED.logout_at,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.DockID, string(rec.Status), rec.Position, rec.LoginAt, rec.LogoutAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert session %s: %w", rec.ID, err)
	}
	return nil
}

// UpdatePosition records the session's latest position.
func (s *SessionStore) UpdatePosition(ctx context.Context, id string, position int) error {
	const query = `UPDATE sessions SET position = $2, updated_at = NOW() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, position)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update position %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkOffline flips the session to Offline and stamps the logout time.
func (s *SessionStore) MarkOffline(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE sessions SET status = $2, logout_at = $3, updated_at = $3
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, string(domain.SessionStatusOffline), at)
	if err != nil {
		return fmt.Errorf("postgres: mark offline %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark offline %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (domain.SessionRecord, error) {
	query := `SELECT ` + sessionSelectCols + ` FROM sessions WHERE id = $1`
	rec, err := scanSession(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SessionRecord{}, fmt.Errorf("postgres: session %s: %w", id, domain.ErrNotFound)
		}
		return domain.SessionRecord{}, fmt.Errorf("postgres: get session %s: %w", id, err)
	}
	return rec, nil
}

// ListOnline returns every Online session ordered by id.
func (s *SessionStore) ListOnline(ctx context.Context) ([]domain.SessionRecord, error) {
	query := `SELECT ` + sessionSelectCols + ` FROM sessions WHERE status = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, string(domain.SessionStatusOnline))
	if err != nil {
		return nil, fmt.Errorf("postgres: list online sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list online sessions rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
