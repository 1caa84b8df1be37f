package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"bidding-engine/internal/domain"
)

// RedisStateCache keeps a cheap copy of each auction's lifecycle status so
// read paths can check it without a database round-trip. The MySQL row
// stays authoritative.
type RedisStateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := fmt.Sprintf("auction:%s:status", auctionID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, error) {
	key := fmt.Sprintf("auction:%s:status", auctionID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AuctionUpcoming, nil
		}
		return domain.AuctionUpcoming, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.AuctionUpcoming, err
	}

	return domain.AuctionStatus(status), nil
}
