// Package bootstrap builds the storage and cache backends selected by
// configuration. Every binary goes through it so a driver name means the same
// thing everywhere.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bidding-system/internal/config"
	"bidding-system/internal/domain"
	"bidding-system/internal/infrastructure/memory"
	"bidding-system/internal/infrastructure/mysql"
	"bidding-system/internal/infrastructure/redis"
	"bidding-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

const connectTimeout = 5 * time.Second

// Stores groups the backends a binary may need. History is nil unless the
// SQL store is in use.
type Stores struct {
	Catalog domain.ItemCatalog
	History domain.BidRepository
	db      *sql.DB
}

func (s *Stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func NeedsRedis(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Store.Driver, "redis") ||
		strings.EqualFold(cfg.Bid.DedupeBackend, "redis") ||
		cfg.Broadcast.RelayEnabled
}

// ConnectRedis returns a client that has answered a PING.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*redisClient.Client, error) {
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Address, err)
	}
	log.Info("Connected to Redis", "address", cfg.Address)
	return rdb, nil
}

// OpenStores builds the item catalog for cfg.Store.Driver. rdb may be nil
// unless the driver is redis.
func OpenStores(ctx context.Context, cfg *config.Config, rdb *redisClient.Client, log logger.Logger) (*Stores, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		log.Warn("Using in-memory price store, state is lost on restart")
		return &Stores{Catalog: memory.NewPriceStore()}, nil

	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("store.driver redis needs a redis client")
		}
		return &Stores{Catalog: redis.NewRedisPriceStore(rdb)}, nil

	case "mysql":
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		db, err := mysql.Open(ctx, cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("Connected to MySQL")
		return &Stores{
			Catalog: mysql.NewMySQLItemRepository(db),
			History: mysql.NewMySQLBidRepository(db),
			db:      db,
		}, nil
	}
	return nil, fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
}

// NewOutcomeCache picks the dedupe backend. The returned sweeper is non-nil
// only for the process-local cache; Redis expires keys on its own.
func NewOutcomeCache(cfg *config.Config, rdb *redisClient.Client) (domain.OutcomeCache, domain.Sweeper) {
	if strings.EqualFold(cfg.Bid.DedupeBackend, "redis") && rdb != nil {
		return redis.NewRedisOutcomeCache(rdb, cfg.Bid.DedupeWindow), nil
	}
	cache := memory.NewOutcomeCache(cfg.Bid.DedupeWindow)
	return cache, cache
}
