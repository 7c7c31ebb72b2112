package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bidding-system/internal/domain"
)

// MySQLItemRepository is the SQL price store. The conditional write is a
// single UPDATE guarded by the expected version, so concurrent writers from
// any number of instances cannot both win.
type MySQLItemRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLItemRepository(db *sql.DB) *MySQLItemRepository {
	return &MySQLItemRepository{db: db, now: time.Now}
}

func (r *MySQLItemRepository) CreateItem(ctx context.Context, itemID string, startingPrice int64) (*domain.Item, error) {
	if startingPrice < 0 {
		return nil, domain.ErrInvalidPrice
	}

	now := r.now().UTC()
	query := `
        INSERT INTO items (id, current_price, version, created_at, updated_at)
        VALUES (?, ?, 0, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query, itemID, startingPrice, now, now)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, domain.ErrItemExists
		}
		if _, getErr := r.GetItem(ctx, itemID); getErr == nil {
			return nil, domain.ErrItemExists
		}
		return nil, fmt.Errorf("create item %s: %w", itemID, err)
	}

	return &domain.Item{ID: itemID, CurrentPrice: startingPrice, UpdatedAt: now}, nil
}

func (r *MySQLItemRepository) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	query := `
        SELECT id, current_price, version, updated_at
        FROM items WHERE id = ?
    `

	var item domain.Item
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&item.ID, &item.CurrentPrice, &item.Version, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return &item, nil
}

func (r *MySQLItemRepository) ReadPrice(ctx context.Context, itemID string) (int64, uint64, error) {
	query := `SELECT current_price, version FROM items WHERE id = ?`

	var price int64
	var version uint64
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(&price, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, domain.ErrItemNotFound
		}
		return 0, 0, fmt.Errorf("read price %s: %w", itemID, err)
	}
	return price, version, nil
}

func (r *MySQLItemRepository) ConditionalSetPrice(ctx context.Context, itemID string, newPrice int64, expectedVersion uint64) (uint64, error) {
	query := `
        UPDATE items SET current_price = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?
    `
	result, err := r.db.ExecContext(ctx, query, newPrice, r.now().UTC(), itemID, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("set price %s: %w", itemID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set price %s: %w", itemID, err)
	}
	if affected == 1 {
		return expectedVersion + 1, nil
	}

	// Nothing matched: either the item is gone or someone else moved the version.
	if _, _, err := r.ReadPrice(ctx, itemID); err != nil {
		return 0, err
	}
	return 0, domain.ErrVersionConflict
}
