package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bidding-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

const (
	setPriceNotFound = -1
	setPriceConflict = -2
)

// The version check and the write run in one script, so the conditional
// write is atomic with respect to every other client of the same Redis.
var setPriceScript = redis.NewScript(`
    local key = KEYS[1]
    local version = redis.call('HGET', key, 'version')
    if version == false then
        return -1
    end
    if tonumber(version) ~= tonumber(ARGV[2]) then
        return -2
    end
    local new_version = redis.call('HINCRBY', key, 'version', 1)
    redis.call('HSET', key, 'current_price', ARGV[1], 'updated_at', ARGV[3])
    return new_version
`)

var createItemScript = redis.NewScript(`
    if redis.call('EXISTS', KEYS[1]) == 1 then
        return 0
    end
    redis.call('HSET', KEYS[1], 'current_price', ARGV[1], 'version', 0, 'updated_at', ARGV[2])
    return 1
`)

type RedisPriceStore struct {
	client *redis.Client
}

func NewRedisPriceStore(client *redis.Client) *RedisPriceStore {
	return &RedisPriceStore{client: client}
}

func itemKey(itemID string) string {
	return fmt.Sprintf("item:%s", itemID)
}

func (r *RedisPriceStore) CreateItem(ctx context.Context, itemID string, startingPrice int64) (*domain.Item, error) {
	if startingPrice < 0 {
		return nil, domain.ErrInvalidPrice
	}

	now := time.Now()
	created, err := createItemScript.Run(ctx, r.client, []string{itemKey(itemID)},
		startingPrice, now.UnixMilli()).Int64()
	if err != nil {
		return nil, fmt.Errorf("create item %s: %w", itemID, err)
	}
	if created == 0 {
		return nil, domain.ErrItemExists
	}

	return &domain.Item{ID: itemID, CurrentPrice: startingPrice, UpdatedAt: now}, nil
}

func (r *RedisPriceStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	result, err := r.client.HMGet(ctx, itemKey(itemID), "current_price", "version", "updated_at").Result()
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	if result[0] == nil || result[1] == nil {
		return nil, domain.ErrItemNotFound
	}

	item := domain.Item{ID: itemID}
	if item.CurrentPrice, err = parseInt(result[0]); err != nil {
		return nil, err
	}
	version, err := parseInt(result[1])
	if err != nil {
		return nil, err
	}
	item.Version = uint64(version)
	if result[2] != nil {
		if millis, err := parseInt(result[2]); err == nil {
			item.UpdatedAt = time.UnixMilli(millis)
		}
	}
	return &item, nil
}

func (r *RedisPriceStore) ReadPrice(ctx context.Context, itemID string) (int64, uint64, error) {
	item, err := r.GetItem(ctx, itemID)
	if err != nil {
		return 0, 0, err
	}
	return item.CurrentPrice, item.Version, nil
}

func (r *RedisPriceStore) ConditionalSetPrice(ctx context.Context, itemID string, newPrice int64, expectedVersion uint64) (uint64, error) {
	result, err := setPriceScript.Run(ctx, r.client, []string{itemKey(itemID)},
		newPrice, expectedVersion, time.Now().UnixMilli()).Int64()
	if err != nil {
		return 0, fmt.Errorf("set price %s: %w", itemID, err)
	}

	switch result {
	case setPriceNotFound:
		return 0, domain.ErrItemNotFound
	case setPriceConflict:
		return 0, domain.ErrVersionConflict
	default:
		return uint64(result), nil
	}
}

func parseInt(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected redis value type")
	}
	return strconv.ParseInt(s, 10, 64)
}
