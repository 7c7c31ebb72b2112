package redis

import (
	"context"
	"encoding/json"

	"bidding-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, channel: channel}
}

func (r *RedisEventPublisher) PublishBidEvent(ctx context.Context, event domain.BidEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}
