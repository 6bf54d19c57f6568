package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisUsageCounter struct {
	rdb *redis.Client
}

func NewRedisUsageCounter(rdb *redis.Client) UsageCounter {
	return &redisUsageCounter{rdb: rdb}
}

func (c *redisUsageCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (c *redisUsageCounter) Increment(ctx context.Context, key string, by int64, expiry time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.IncrBy(ctx, key, by)
	// NX keeps the expiry anchored to the first write of the month.
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type memoryUsageCounter struct {
	mu     sync.RWMutex
	counts map[string]int64
}

func NewMemoryUsageCounter() UsageCounter {
	return &memoryUsageCounter{counts: make(map[string]int64)}
}

func (c *memoryUsageCounter) Get(_ context.Context, key string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[key], nil
}

func (c *memoryUsageCounter) Increment(_ context.Context, key string, by int64, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key] += by
	return c.counts[key], nil
}
