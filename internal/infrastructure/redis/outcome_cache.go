package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bidding-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisOutcomeCache shares the submission dedupe window across instances.
// The first outcome stored for a key wins.
type RedisOutcomeCache struct {
	client *redis.Client
	window time.Duration
}

func NewRedisOutcomeCache(client *redis.Client, window time.Duration) *RedisOutcomeCache {
	return &RedisOutcomeCache{client: client, window: window}
}

func outcomeKey(itemID, submissionID string) string {
	return fmt.Sprintf("bid_outcome:%s:%s", itemID, submissionID)
}

func (r *RedisOutcomeCache) Get(ctx context.Context, itemID, submissionID string) (*domain.BidOutcome, bool, error) {
	data, err := r.client.Get(ctx, outcomeKey(itemID, submissionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var outcome domain.BidOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, false, err
	}
	return &outcome, true, nil
}

func (r *RedisOutcomeCache) Put(ctx context.Context, itemID, submissionID string, outcome domain.BidOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return r.client.SetNX(ctx, outcomeKey(itemID, submissionID), data, r.window).Err()
}
