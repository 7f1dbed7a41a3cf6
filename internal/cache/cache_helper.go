package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when the key does not exist or has expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheNotAvailable is returned when no Redis client is configured.
	ErrCacheNotAvailable = errors.New("cache not available")
)

// CacheHelper provides JSON get/set operations over Redis with a shared key
// prefix and TTL. The registry uses it for session liveness markers and
// outcome snapshots.
type CacheHelper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCacheHelper creates a new cache helper instance
func NewCacheHelper(client *redis.Client, prefix string, ttl time.Duration) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// GetCacheKey generates a cache key with prefix
func (c *CacheHelper) GetCacheKey(key string) string {
	return fmt.Sprintf("%s%s", c.prefix, key)
}

// Get retrieves and unmarshals data from cache
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.GetCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return nil
}

// Set marshals and stores data in cache with the helper's TTL
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, c.GetCacheKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// SetString stores a raw string value with the helper's TTL
func (c *CacheHelper) SetString(ctx context.Context, key, value string) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}
	if err := c.client.Set(ctx, c.GetCacheKey(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes keys from cache
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = c.GetCacheKey(key)
	}

	if err := c.client.Del(ctx, cacheKeys...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}
