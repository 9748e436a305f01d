// Package rediscache provides the best-effort segment cache backed by Redis.
// The cache is never authoritative: every operation swallows connectivity
// and serialization errors and returns a neutral value, so an unavailable
// Redis degrades to direct store access instead of failing requests.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache implements domain.Cache on top of a Redis client with JSON values.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Redis-backed cache. A failed Ping at startup is advisory
// only; the wrapper keeps operating and every call degrades gracefully.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	c := &Cache{
		client: client,
		logger: logger.With("component", "segment_cache"),
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		c.logger.Warn("redis unreachable at startup, cache operations will degrade to misses", "error", err)
	}
	return c
}

// Get returns the raw cached value and whether it was present. Any failure
// is reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

// Set stores a JSON-serialized value with a TTL. Failures are logged and
// reported as false, never propagated.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache set failed to serialize value", "key", key, "error", err)
		return false
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes a key. Failures are logged and reported as false.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	deleted, err := c.client.Del(ctx, key).Result()
	if err != nil {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
		return false
	}
	return deleted > 0
}
