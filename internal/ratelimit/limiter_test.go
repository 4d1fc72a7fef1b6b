package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (Limiter, *miniredis.Miniredis) {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return NewRedisLimiter(client, "feedback", max, window), mini
}

func TestLimiterExhaustion(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, 7)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, 7)
	require.NoError(t, err)
	require.False(t, allowed)

	// A different user has their own bucket.
	allowed, err = limiter.Allow(ctx, 8)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterWindowReset(t *testing.T) {
	limiter, mini := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, 7)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, 7)
	require.NoError(t, err)
	require.False(t, allowed)

	mini.FastForward(2 * time.Minute)

	allowed, err = limiter.Allow(ctx, 7)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterConcurrentAttempts(t *testing.T) {
	const max = 5
	limiter, _ := newTestLimiter(t, max, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan bool, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := limiter.Allow(ctx, 7)
			require.NoError(t, err)
			results <- allowed
		}()
	}

	wg.Wait()
	close(results)

	granted := 0
	for allowed := range results {
		if allowed {
			granted++
		}
	}

	require.Equal(t, max, granted)
}
