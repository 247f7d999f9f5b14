package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryKeyPrefix = "summary:video:"

// RedisSummaryCache stores summaries in Redis with a TTL, letting Redis own
// eviction entirely.
type RedisSummaryCache struct {
	redis *Redis
	ttl   time.Duration
}

// NewRedisSummaryCache creates a Redis-backed summary cache.
func NewRedisSummaryCache(r *Redis, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{redis: r, ttl: ttl}
}

// Get returns the cached summary for the video, if present.
func (c *RedisSummaryCache) Get(ctx context.Context, videoID string) (string, bool, error) {
	val, err := c.redis.Get(ctx, summaryKeyPrefix+videoID)
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached summary: %w", err)
	}
	return val, true, nil
}

// Put stores the summary with a fresh TTL.
func (c *RedisSummaryCache) Put(ctx context.Context, videoID, summary string) error {
	if err := c.redis.Set(ctx, summaryKeyPrefix+videoID, summary, c.ttl); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}
