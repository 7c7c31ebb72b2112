package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	ready   chan struct{}
	once    sync.Once
	log     logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, channel string, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client:  client,
		channel: channel,
		ready:   make(chan struct{}),
		log:     log,
	}
}

// Ready is closed once the subscription is confirmed by the server.
func (r *RedisEventSubscriber) Ready() <-chan struct{} {
	return r.ready
}

func (r *RedisEventSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.once.Do(func() { close(r.ready) })

	ch := pubsub.Channel()

	r.log.Info("Subscribed to bid events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "item_id", event.ItemID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEventData(payload string) (domain.BidEvent, error) {
	var event domain.BidEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return domain.BidEvent{}, fmt.Errorf("invalid event format: %w", err)
	}
	if event.ItemID == "" {
		return domain.BidEvent{}, fmt.Errorf("invalid event format: missing item_id")
	}
	return event, nil
}
