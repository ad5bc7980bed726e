// Package services provides external service integrations and technical concerns like advisory scoring and tokens
package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/redis/go-redis/v9"
)

// CacheStats aggregates hit and miss counts for a cache instance
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// ResponseCache stores serialized advisory responses with per-entry expiry
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() CacheStats
}

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryResponseCache is an in-process ResponseCache. Expired entries are
// dropped lazily on read and eagerly by Prune.
type MemoryResponseCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	hits    atomic.Int64
	misses  atomic.Int64
	clock   utils.Clock
}

// NewMemoryResponseCache creates an empty in-process cache. A nil clock falls
// back to UTC wall time.
func NewMemoryResponseCache(clock utils.Clock) *MemoryResponseCache {
	if clock == nil {
		clock = utils.UTCNow
	}
	return &MemoryResponseCache{
		entries: make(map[string]memoryCacheEntry),
		clock:   clock,
	}
}

// Get returns the cached value when present and not expired.
func (c *MemoryResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.clock().After(entry.expiresAt) {
		if ok {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.value, true
}

// SetWithTTL stores the value until the TTL elapses.
func (c *MemoryResponseCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryCacheEntry{
		value:     value,
		expiresAt: c.clock().Add(ttl),
	}
	return nil
}

// Remove drops one key.
func (c *MemoryResponseCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Clear drops all entries.
func (c *MemoryResponseCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryCacheEntry)
	return nil
}

// Prune removes expired entries and returns how many were dropped.
func (c *MemoryResponseCache) Prune(ctx context.Context) int {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Stats returns hit/miss counters and the current entry count.
func (c *MemoryResponseCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

// RedisResponseCache is a ResponseCache backed by a shared Redis instance.
// Expiry is enforced server-side through key TTLs.
type RedisResponseCache struct {
	rc     *redis.Client
	prefix string
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisResponseCache creates a Redis-backed cache. All keys are stored
// under the given prefix so Clear never touches unrelated keys.
func NewRedisResponseCache(rc *redis.Client, prefix string) *RedisResponseCache {
	return &RedisResponseCache{rc: rc, prefix: prefix}
}

func (c *RedisResponseCache) key(key string) string {
	return c.prefix + ":" + key
}

// Get returns the cached value when present. Redis errors count as misses.
func (c *RedisResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	bs, err := c.rc.Get(ctx, c.key(key)).Bytes()
	if err != nil || len(bs) == 0 {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return bs, true
}

// SetWithTTL stores the value with a server-side TTL.
func (c *RedisResponseCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rc.Set(ctx, c.key(key), value, ttl).Err()
}

// Remove drops one key.
func (c *RedisResponseCache) Remove(ctx context.Context, key string) error {
	return c.rc.Del(ctx, c.key(key)).Err()
}

// Clear drops every key under the cache prefix.
func (c *RedisResponseCache) Clear(ctx context.Context) error {
	iter := c.rc.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rc.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Stats returns hit/miss counters. Entry counts are not tracked for Redis.
func (c *RedisResponseCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
