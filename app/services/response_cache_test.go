package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResponseCacheRoundTrip(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryResponseCache(clock.Now)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, cache.SetWithTTL(ctx, "key", []byte("value"), 5*time.Minute))

	got, ok := cache.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestMemoryResponseCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryResponseCache(clock.Now)
	ctx := context.Background()

	require.NoError(t, cache.SetWithTTL(ctx, "key", []byte("value"), 5*time.Minute))

	clock.Advance(5*time.Minute - time.Second)
	_, ok := cache.Get(ctx, "key")
	assert.True(t, ok, "entry must survive until the TTL elapses")

	clock.Advance(2 * time.Second)
	_, ok = cache.Get(ctx, "key")
	assert.False(t, ok, "entry must expire after the TTL")

	// The expired entry is dropped on read.
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestMemoryResponseCachePrune(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryResponseCache(clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.SetWithTTL(ctx, fmt.Sprintf("short-%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, cache.SetWithTTL(ctx, "long", []byte("v"), time.Hour))

	assert.Equal(t, 0, cache.Prune(ctx), "nothing expired yet")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 3, cache.Prune(ctx))
	assert.Equal(t, 1, cache.Stats().Entries)

	_, ok := cache.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryResponseCacheRemoveAndClear(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryResponseCache(clock.Now)
	ctx := context.Background()

	require.NoError(t, cache.SetWithTTL(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, cache.SetWithTTL(ctx, "b", []byte("2"), time.Hour))

	require.NoError(t, cache.Remove(ctx, "a"))
	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, cache.Clear(ctx))
	assert.Equal(t, 0, cache.Stats().Entries)
}
