package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-notify/internal/domain"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "purchase_events"

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) PublishPurchaseEvent(ctx context.Context, event *domain.PurchaseEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode purchase event: %w", err)
	}

	return r.client.Publish(ctx, r.channel, eventData).Err()
}
