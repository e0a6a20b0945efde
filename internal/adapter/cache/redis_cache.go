package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aq2208/stockorder-api/internal/usecase"
)

// RedisCache holds placement summaries for cheap status polls. Written by the
// order.placed consumer, read by the status endpoint. Best-effort: a miss
// falls through to MySQL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (r *RedisCache) SetSummary(ctx context.Context, orderID string, s usecase.OrderSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, "order:summary:"+orderID, b, r.ttl).Err()
}

func (r *RedisCache) GetSummary(ctx context.Context, orderID string) (usecase.OrderSummary, bool, error) {
	raw, err := r.rdb.Get(ctx, "order:summary:"+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.OrderSummary{}, false, nil
	}
	if err != nil {
		return usecase.OrderSummary{}, false, err
	}
	var s usecase.OrderSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return usecase.OrderSummary{}, false, err
	}
	return s, true, nil
}

var _ usecase.OrderCache = (*RedisCache)(nil)
