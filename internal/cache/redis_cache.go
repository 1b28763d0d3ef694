package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medstore/backend/internal/domain"
)

const ledgerKeyPrefix = "ledger:daily:"

type RedisLedgerCache struct {
	client *redis.Client
}

func NewRedisLedgerCache(addr string, password string, db int) *RedisLedgerCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisLedgerCache{client: client}
}

func (c *RedisLedgerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLedgerCache) Close() error {
	return c.client.Close()
}

func (c *RedisLedgerCache) Get(ctx context.Context, date string) (*domain.DailyLedger, bool, error) {
	val, err := c.client.Get(ctx, ledgerKeyPrefix+date).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ledger domain.DailyLedger
	if err := json.Unmarshal([]byte(val), &ledger); err != nil {
		return nil, false, err
	}
	return &ledger, true, nil
}

func (c *RedisLedgerCache) Set(ctx context.Context, date string, value *domain.DailyLedger, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ledgerKeyPrefix+date, payload, ttl).Err()
}

func (c *RedisLedgerCache) Invalidate(ctx context.Context, date string) error {
	return c.client.Del(ctx, ledgerKeyPrefix+date).Err()
}
