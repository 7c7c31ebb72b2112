package memory

import (
	"context"
	"testing"
	"time"

	"bidding-system/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceStore_CreateAndRead(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	item, err := store.CreateItem(ctx, "X", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.CurrentPrice)
	assert.Equal(t, uint64(0), item.Version)

	_, err = store.CreateItem(ctx, "X", 200)
	assert.ErrorIs(t, err, domain.ErrItemExists)

	_, err = store.CreateItem(ctx, "Y", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	price, version, err := store.ReadPrice(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(100), price)
	assert.Equal(t, uint64(0), version)

	_, _, err = store.ReadPrice(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestPriceStore_ConditionalSetPrice(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	_, err := store.CreateItem(ctx, "X", 100)
	require.NoError(t, err)

	version, err := store.ConditionalSetPrice(ctx, "X", 110, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	_, err = store.ConditionalSetPrice(ctx, "X", 120, 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = store.ConditionalSetPrice(ctx, "missing", 10, 0)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	item, err := store.GetItem(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(110), item.CurrentPrice)
	assert.Equal(t, uint64(1), item.Version)
}

func TestPriceStore_CanceledContext(t *testing.T) {
	store := NewPriceStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.ReadPrice(ctx, "X")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.ConditionalSetPrice(ctx, "X", 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutcomeCache(t *testing.T) {
	cache := NewOutcomeCache(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "X", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	outcome := domain.Accepted("X", 110, "A", 1)
	require.NoError(t, cache.Put(ctx, "X", "s1", outcome))

	got, ok, err := cache.Get(ctx, "X", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, outcome, *got)

	// keys are per item
	_, ok, _ = cache.Get(ctx, "Y", "s1")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Get(ctx, "X", "s1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestOutcomeCache_Sweep(t *testing.T) {
	cache := NewOutcomeCache(time.Minute)
	start := time.Now()
	cache.now = func() time.Time { return start }
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "X", "s1", domain.Rejected("X", domain.RejectConflict)))
	require.NoError(t, cache.Put(ctx, "X", "s2", domain.Rejected("X", domain.RejectConflict)))

	assert.Equal(t, 0, cache.Sweep(start.Add(30*time.Second)))
	assert.Equal(t, 2, cache.Sweep(start.Add(time.Minute)))
	assert.Equal(t, 0, cache.Len())
}
