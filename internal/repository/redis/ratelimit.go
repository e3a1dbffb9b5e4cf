package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "ratelimit:"
	rateLimitWindow = time.Minute
)

// RateLimiter caps chat rounds per session. Each key gets a one-minute window
// opened by its first request; the budget is requestsPerMinute plus burst.
type RateLimiter struct {
	client *Client
	limit  int64
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  int64(requestsPerMinute + burst),
	}
}

// Allow counts one request against key.
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	counterKey := rateLimitPrefix + key

	pipe := r.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.ExpireNX(ctx, counterKey, rateLimitWindow)
	ttl := pipe.PTTL(ctx, counterKey)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	window := ttl.Val()
	if window <= 0 {
		window = rateLimitWindow
	}
	resetAt := time.Now().Add(window)

	count := incr.Val()
	remaining := max(r.limit-count, 0)

	return count <= r.limit, int(remaining), resetAt, nil
}
