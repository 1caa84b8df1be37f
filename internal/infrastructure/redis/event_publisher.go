package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"bidding-engine/internal/domain"
)

const eventChannel = "auction_events"

type EventPublisherImpl struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client}
}

func (r *EventPublisherImpl) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, eventChannel, payload).Err()
}
