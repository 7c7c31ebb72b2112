package mysql

import (
	"context"
	"database/sql"
	"time"

	"bidding-system/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

// SaveAcceptedBid is idempotent per (item, sequence number); replays from the
// event channel after a leadership change are ignored.
func (r *MySQLBidRepository) SaveAcceptedBid(ctx context.Context, record *domain.AuditRecord) error {
	query := `
        INSERT INTO bid_events (id, item_id, bidder_id, amount, sequence_number, accepted_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.ItemID, record.BidderID, record.Amount,
		record.SequenceNumber, record.AcceptedAt.UTC(), time.Now().UTC())
	if isDuplicateEntry(err) {
		return nil
	}
	return err
}

func (r *MySQLBidRepository) GetBidHistory(ctx context.Context, itemID string) ([]*domain.AuditRecord, error) {
	query := `
        SELECT id, item_id, bidder_id, amount, sequence_number, accepted_at
        FROM bid_events
        WHERE item_id = ?
        ORDER BY sequence_number ASC
    `

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord

		err := rows.Scan(&record.ID, &record.ItemID, &record.BidderID,
			&record.Amount, &record.SequenceNumber, &record.AcceptedAt)
		if err != nil {
			return nil, err
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}
