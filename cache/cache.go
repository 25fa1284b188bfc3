// Package cache memoizes expensive derived views of the music index,
// such as the merged collection tree and cover lookups.
//
// Callers usually bake a freshness fingerprint for the owner's library
// (the latest track updated_at) into the key, so a stale entry is
// simply never looked up again once the fingerprint moves on. Explicit
// invalidation is only needed for values the fingerprint cannot
// capture, like a cover blob tied to one file id.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a small per-owner key/value store with per-entry expiry.
type Cache interface {
	// Get returns the cached value or ErrCacheMiss.
	Get(ctx context.Context, userID int64, key string) ([]byte, error)
	// Put stores the value. ttl <= 0 means the entry never expires
	// until explicitly invalidated.
	Put(ctx context.Context, userID int64, key string, value []byte, ttl time.Duration) error
	// Invalidate removes the given keys, or every entry of the owner
	// when no keys are given.
	Invalidate(ctx context.Context, userID int64, keys ...string) error
}

// entryKey builds the namespaced storage key for an owner's entry.
func entryKey(userID int64, key string) string {
	return fmt.Sprintf("melodex:cache:%d:%s", userID, key)
}

// ownerPrefix is the storage-key prefix shared by all of an owner's
// entries.
func ownerPrefix(userID int64) string {
	return fmt.Sprintf("melodex:cache:%d:", userID)
}

// CoverKey is the cache key for an album's cover blob. Cover entries
// carry no freshness fingerprint, so they are invalidated explicitly
// whenever the album's cover reference changes.
func CoverKey(albumID int64) string {
	return fmt.Sprintf("cover:%d", albumID)
}

// CollectionKey is the cache key for the merged collection tree,
// parameterized by the owner's freshness fingerprint.
func CollectionKey(fingerprint string) string {
	return "collection:" + fingerprint
}
