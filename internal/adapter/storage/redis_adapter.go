package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "stock:"

// RedisAdapter caches the last committed quantity per item for cheap
// availability reads. It is refreshed by the sync workers after every
// committed mutation and is never consulted by the transaction logic.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetStock(ctx context.Context, itemID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+itemID, quantity, 0).Err()
}

func (r *RedisAdapter) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	quantity, err := r.client.Get(ctx, stockKeyPrefix+itemID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return quantity, true, nil
}

func (r *RedisAdapter) DeleteStock(ctx context.Context, itemID string) error {
	return r.client.Del(ctx, stockKeyPrefix+itemID).Err()
}
