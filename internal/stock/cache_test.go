package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LevelCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLevelCache(client, 30*time.Second), mr
}

func TestLevelCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, 612.5))
	level, ok := cache.Get(ctx)
	require.True(t, ok)
	require.InDelta(t, 612.5, level, 0.0001)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok = cache.Get(ctx)
	require.False(t, ok)
}

func TestLevelCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 100))
	mr.FastForward(time.Minute)

	_, ok := cache.Get(ctx)
	require.False(t, ok)
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *LevelCache
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	require.False(t, ok)
	require.NoError(t, cache.Set(ctx, 5))
	require.NoError(t, cache.Invalidate(ctx))
}
