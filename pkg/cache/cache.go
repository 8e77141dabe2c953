package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented key/value store with TTLs. Two backends exist:
// Redis for multi-process deployments and a bounded in-process map for
// development and tests. The backend is chosen at startup and injected.
type Cache interface {
	// Get returns the value and true if the key exists and has not expired.
	// A backend failure is an error, not a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Redis-backed cache.
type redisCache struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// memoryCache is a bounded in-process map. When full, the entry closest to
// expiry is evicted. Suitable for single-process deployments only.
type memoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
}

func NewMemory(maxEntries int) Cache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &memoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
	}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	val := make([]byte, len(entry.value))
	copy(val, entry.value)
	return val, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	val := make([]byte, len(value))
	copy(val, value)
	c.entries[key] = memoryEntry{
		value:   val,
		expires: time.Now().Add(ttl),
	}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// evictLocked removes expired entries, then the soonest-to-expire entry if
// still at capacity. Caller must hold the write lock.
func (c *memoryCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expires.Before(oldest) {
			oldestKey = key
			oldest = entry.expires
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
