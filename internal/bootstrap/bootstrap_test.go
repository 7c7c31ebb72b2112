package bootstrap

import (
	"context"
	"testing"
	"time"

	"bidding-system/internal/config"
	"bidding-system/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver, dedupe string) *config.Config {
	cfg := &config.Config{}
	cfg.Store.Driver = driver
	cfg.Bid.DedupeBackend = dedupe
	cfg.Bid.DedupeWindow = time.Minute
	return cfg
}

func TestNeedsRedis(t *testing.T) {
	assert.False(t, NeedsRedis(testConfig("memory", "memory")))
	assert.True(t, NeedsRedis(testConfig("redis", "memory")))
	assert.True(t, NeedsRedis(testConfig("mysql", "redis")))

	cfg := testConfig("memory", "memory")
	cfg.Broadcast.RelayEnabled = true
	assert.True(t, NeedsRedis(cfg))
}

func TestOpenStores_Memory(t *testing.T) {
	stores, err := OpenStores(context.Background(), testConfig("memory", "memory"), nil, logger.NewNop())
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.History)
	_, err = stores.Catalog.CreateItem(context.Background(), "X", 100)
	require.NoError(t, err)
}

func TestOpenStores_RedisNeedsClient(t *testing.T) {
	_, err := OpenStores(context.Background(), testConfig("redis", "memory"), nil, logger.NewNop())
	assert.Error(t, err)
}

func TestOpenStores_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig("redis", "redis")
	cfg.Redis.Address = mr.Addr()

	rdb, err := ConnectRedis(context.Background(), cfg.Redis, logger.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	stores, err := OpenStores(context.Background(), cfg, rdb, logger.NewNop())
	require.NoError(t, err)
	item, err := stores.Catalog.CreateItem(context.Background(), "X", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.CurrentPrice)

	cache, sweeper := NewOutcomeCache(cfg, rdb)
	assert.NotNil(t, cache)
	assert.Nil(t, sweeper)
}

func TestNewOutcomeCache_Memory(t *testing.T) {
	cache, sweeper := NewOutcomeCache(testConfig("memory", "memory"), nil)
	assert.NotNil(t, cache)
	assert.NotNil(t, sweeper)
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), config.RedisConfig{Address: addr}, logger.NewNop())
	assert.Error(t, err)
}
