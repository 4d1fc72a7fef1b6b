// Package ratelimit gates the expensive feedback path per user.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether a user may spend one more expensive call in the
// current window. Exhaustion is not an error condition; callers treat a false
// result as a routing signal.
type Limiter interface {
	Allow(ctx context.Context, userID uint) (bool, error)
}

type redisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter builds a fixed-window limiter on Redis. The attempt counter
// is advanced with an atomic INCR, so two concurrent calls for the same user
// cannot both succeed on the last remaining token.
func NewRedisLimiter(client *redis.Client, feature string, max int, window time.Duration) Limiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &redisLimiter{
		client: client,
		prefix: "ratelimit:" + feature,
		max:    int64(max),
		window: window,
	}
}

func (l *redisLimiter) Allow(ctx context.Context, userID uint) (bool, error) {
	key := fmt.Sprintf("%s:%d", l.prefix, userID)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	return count.Val() <= l.max, nil
}
