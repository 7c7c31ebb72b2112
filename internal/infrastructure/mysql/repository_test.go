package mysql

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"bidding-system/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB runs the repositories' SQL against an in-memory SQLite database.
// The statements are kept portable so the same code serves MySQL.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, EnsureSchema(context.Background(), db))
}

func TestItemRepository_CreateAndGet(t *testing.T) {
	repo := NewMySQLItemRepository(openTestDB(t))
	ctx := context.Background()

	item, err := repo.CreateItem(ctx, "X", 100)
	require.NoError(t, err)
	assert.Equal(t, "X", item.ID)

	_, err = repo.CreateItem(ctx, "X", 100)
	assert.ErrorIs(t, err, domain.ErrItemExists)

	_, err = repo.CreateItem(ctx, "Y", -5)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	got, err := repo.GetItem(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.CurrentPrice)
	assert.Equal(t, uint64(0), got.Version)
	assert.False(t, got.UpdatedAt.IsZero())

	_, err = repo.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	_, _, err = repo.ReadPrice(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemRepository_ConditionalSetPrice(t *testing.T) {
	repo := NewMySQLItemRepository(openTestDB(t))
	ctx := context.Background()
	_, err := repo.CreateItem(ctx, "X", 100)
	require.NoError(t, err)

	version, err := repo.ConditionalSetPrice(ctx, "X", 110, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	_, err = repo.ConditionalSetPrice(ctx, "X", 110, 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = repo.ConditionalSetPrice(ctx, "missing", 110, 0)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	price, version, err := repo.ReadPrice(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(110), price)
	assert.Equal(t, uint64(1), version)
}

func TestItemRepository_ConcurrentWritersOneWins(t *testing.T) {
	repo := NewMySQLItemRepository(openTestDB(t))
	ctx := context.Background()
	_, err := repo.CreateItem(ctx, "X", 100)
	require.NoError(t, err)

	const writers = 8
	results := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.ConditionalSetPrice(ctx, "X", 110, 0)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestBidRepository_History(t *testing.T) {
	repo := NewMySQLBidRepository(openTestDB(t))
	ctx := context.Background()
	accepted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, rec := range []*domain.AuditRecord{
		{ID: "b", ItemID: "X", BidderID: "bob", Amount: 120, SequenceNumber: 2, AcceptedAt: accepted.Add(time.Second)},
		{ID: "a", ItemID: "X", BidderID: "alice", Amount: 110, SequenceNumber: 1, AcceptedAt: accepted},
		{ID: "c", ItemID: "Y", BidderID: "carol", Amount: 60, SequenceNumber: 1, AcceptedAt: accepted},
	} {
		require.NoError(t, repo.SaveAcceptedBid(ctx, rec))
	}

	history, err := repo.GetBidHistory(ctx, "X")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "alice", history[0].BidderID)
	assert.Equal(t, uint64(1), history[0].SequenceNumber)
	assert.Equal(t, "bob", history[1].BidderID)
	assert.True(t, history[1].AcceptedAt.Equal(accepted.Add(time.Second)))

	empty, err := repo.GetBidHistory(ctx, "Z")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
