package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never expires
}

// memoryCache implements Cache with a mutex-guarded map. Used in tests
// and as the fallback when no Redis host is configured.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(_ context.Context, userID int64, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[entryKey(userID, key)]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, entryKey(userID, key))
		return nil, ErrCacheMiss
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (c *memoryCache) Put(_ context.Context, userID int64, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[entryKey(userID, key)] = entry
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, userID int64, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(keys) > 0 {
		for _, key := range keys {
			delete(c.entries, entryKey(userID, key))
		}
		return nil
	}
	prefix := ownerPrefix(userID)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
