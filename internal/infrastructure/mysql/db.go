package mysql

import (
	"context"
	"database/sql"
	"errors"

	"bidding-system/internal/config"

	driver "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

// Schema is the DDL for the tables this service owns. It sticks to portable
// SQL so the same statements run on MySQL and on embedded engines in tests.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
        id            VARCHAR(64) NOT NULL PRIMARY KEY,
        current_price BIGINT      NOT NULL,
        version       BIGINT      NOT NULL DEFAULT 0,
        created_at    DATETIME    NOT NULL,
        updated_at    DATETIME    NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS bid_events (
        id              VARCHAR(36) NOT NULL PRIMARY KEY,
        item_id         VARCHAR(64) NOT NULL,
        bidder_id       VARCHAR(128) NOT NULL,
        amount          BIGINT      NOT NULL,
        sequence_number BIGINT      NOT NULL,
        accepted_at     DATETIME    NOT NULL,
        created_at      DATETIME    NOT NULL,
        UNIQUE (item_id, sequence_number)
    )`,
}

// Open connects to MySQL with the configured pool limits and verifies the
// connection.
func Open(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *driver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
