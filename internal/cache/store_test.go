package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	return NewRedisStore(redis.NewClient(&redis.Options{Addr: mini.Addr()})), mini
}

func TestRedisStoreGetSet(t *testing.T) {
	store, mini := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "key", "value", time.Minute))

	value, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value", value)

	mini.FastForward(2 * time.Minute)

	_, found, err = store.Get(ctx, "key")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStoreSetNX(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	written, err := store.SetNX(ctx, "key", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, written)

	written, err = store.SetNX(ctx, "key", "second", time.Minute)
	require.NoError(t, err)
	require.False(t, written)

	value, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "first", value)
}

func TestFingerprintDeterministic(t *testing.T) {
	first := Fingerprint(1, 2, "the cat sat", "short_answer", 1)
	second := Fingerprint(1, 2, "the cat sat", "short_answer", 1)
	require.Equal(t, first, second)

	// Bumping the rubric version changes the key.
	require.NotEqual(t, first, Fingerprint(1, 2, "the cat sat", "short_answer", 2))
	// Different users never share a key.
	require.NotEqual(t, first, Fingerprint(3, 2, "the cat sat", "short_answer", 1))
}
