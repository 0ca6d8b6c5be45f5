package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// DockStore implements domain.DockStore using PostgreSQL.
type DockStore struct {
	pool *pgxpool.Pool
}

// NewDockStore creates a new DockStore backed by the given connection pool.
func NewDockStore(pool *pgxpool.Pool) *DockStore {
	return &DockStore{pool: pool}
}

// LoadItems returns the persisted items of a dock ordered by item id. An
// unknown dock yields an empty slice.
func (s *DockStore) LoadItems(ctx context.Context, dockID string) ([]domain.Item, error) {
	const query = `
		SELECT item_id, name, buy_price, sell_price, stock
		FROM dock_items WHERE dock_id = $1 ORDER BY item_id`
	rows, err := s.pool.Query(ctx, query, dockID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load dock %s: %w", dockID, err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		var id int
		if err := rows.Scan(&id, &it.Name, &it.Prices.Buy, &it.Prices.Sell, &it.Stock); err != nil {
			return nil, fmt.Errorf("postgres: scan dock item: %w", err)
		}
		it.ID = domain.ItemID(id)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load dock %s rows: %w", dockID, err)
	}
	return items, nil
}

// SaveItem upserts one item's prices and stock.
func (s *DockStore) SaveItem(ctx context.Context, dockID string, item domain.Item) error {
	const query = `
		INSERT INTO dock_items (dock_id, item_id, name, buy_price, sell_price, stock, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (dock_id, item_id) DO UPDATE SET
			name       = EXCLUDED.name,
			buy_price  = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			stock      = EXCLUDED.stock,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		dockID, int(item.ID), item.Name, item.Prices.Buy, item.Prices.Sell, item.Stock)
	if err != nil {
		return fmt.Errorf("postgres: save dock item %s/%d: %w", dockID, item.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.DockStore = (*DockStore)(nil)
