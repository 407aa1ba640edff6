package stock

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const levelCacheKey = "stock:level"

// LevelCache keeps the current available litres in Redis so list-heavy
// callers do not hit the latest-batch row. Every ledger mutation must
// invalidate it. A nil cache is a no-op passthrough.
type LevelCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLevelCache instantiates the cache helper.
func NewLevelCache(client *redis.Client, ttl time.Duration) *LevelCache {
	return &LevelCache{client: client, ttl: ttl}
}

// Get returns the cached level, with ok=false on miss.
func (c *LevelCache) Get(ctx context.Context) (float64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, levelCacheKey).Result()
	if err != nil {
		return 0, false
	}
	level, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return level, true
}

// Set stores the current level with the configured TTL.
func (c *LevelCache) Set(ctx context.Context, level float64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, levelCacheKey, strconv.FormatFloat(level, 'f', -1, 64), c.ttl).Err()
}

// Invalidate drops the cached level.
func (c *LevelCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, levelCacheKey).Err()
}
