package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"arqueo/backend/internal/domain"
)

type RedisBalanceCache struct {
	client *redis.Client
}

func NewRedisBalanceCache(addr string, password string, db int) *RedisBalanceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisBalanceCache{client: client}
}

func (c *RedisBalanceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}

func balanceKey(shiftID string) string {
	return "balance:" + shiftID
}

func (c *RedisBalanceCache) Get(ctx context.Context, shiftID string) (*domain.BalanceResponse, bool, error) {
	val, err := c.client.Get(ctx, balanceKey(shiftID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var resp domain.BalanceResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, shiftID string, value *domain.BalanceResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, balanceKey(shiftID), payload, ttl).Err()
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, shiftID string) error {
	return c.client.Del(ctx, balanceKey(shiftID)).Err()
}
