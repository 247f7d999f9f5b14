package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kwan772/Youtube-TLDR/internal/cache"
)

// RedisLimiter implements the sliding-window algorithm on Redis sorted sets.
// Each request is stored with its timestamp as the score, entries outside the
// window are removed before counting, and keys expire shortly after the
// window so idle callers cost nothing.
type RedisLimiter struct {
	cache  *cache.Redis
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter allowing limit requests per
// key per window.
func NewRedisLimiter(c *cache.Redis, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{cache: c, limit: limit, window: window}
}

// Allow checks and records a request for the key. Redis failures degrade to
// allowing the request so a cache outage cannot take the API down with it.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := l.check(ctx, "ratelimit:"+key)
	if err != nil {
		log.Printf("[ratelimit] redis check failed, allowing request: %v", err)
		return true, nil
	}
	return allowed, nil
}

func (l *RedisLimiter) check(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	nowUnixMicro := now.UnixMicro()
	windowStart := now.Add(-l.window).UnixMicro()

	client := l.cache.Client()
	pipe := client.Pipeline()

	// Remove entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))

	// Count current entries in window
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	if int(countCmd.Val()) >= l.limit {
		return false, nil
	}

	// Add new entry with current timestamp as score.
	// Microseconds keep members unique even for rapid requests.
	err := client.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowUnixMicro),
		Member: strconv.FormatInt(nowUnixMicro, 10),
	}).Err()
	if err != nil {
		return false, fmt.Errorf("failed to add rate limit entry: %w", err)
	}

	// Expire the key so old callers are cleaned up by Redis itself.
	_ = client.Expire(ctx, key, l.window+time.Second).Err()

	return true, nil
}
