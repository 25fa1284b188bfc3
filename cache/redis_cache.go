package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache implements Cache on a Redis client.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, userID int64, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, entryKey(userID, key)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}
	return val, nil
}

func (c *redisCache) Put(ctx context.Context, userID int64, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // redis: 0 = no expiration
	}
	if err := c.client.Set(ctx, entryKey(userID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, userID int64, keys ...string) error {
	if len(keys) > 0 {
		full := make([]string, len(keys))
		for i, key := range keys {
			full[i] = entryKey(userID, key)
		}
		if err := c.client.Del(ctx, full...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache entries: %w", err)
		}
		return nil
	}

	// No keys given: drop everything the owner has.
	iter := c.client.Scan(ctx, 0, ownerPrefix(userID)+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache entries for user %d: %w", userID, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache entries for user %d: %w", userID, err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache entries for user %d: %w", userID, err)
		}
	}
	return nil
}
