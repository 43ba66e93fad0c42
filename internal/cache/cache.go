package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL matches the one hour lifetime of cached read endpoints
	DefaultTTL = time.Hour
	// DefaultPrefix namespaces every cache key
	DefaultPrefix = "parkpal:cache"
)

// Cache is a read-through JSON cache on Redis.
//
// Keys embed a generation number. Invalidate bumps the generation so every
// entry written before becomes unreachable at once; stale entries then expire
// through their TTL.
type Cache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a new Cache
func New(redisClient *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) generationKey() string {
	return c.prefix + ":gen"
}

func (c *Cache) key(ctx context.Context, name string) (string, error) {
	gen, err := c.redis.Get(ctx, c.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, name), nil
}

// Invalidate drops every cached entry. A nil Cache has nothing to drop.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.redis.Incr(ctx, c.generationKey()).Err()
}

// Remember returns the cached value under name, or calls load and caches its
// result. Redis failures degrade to calling load directly.
func Remember[T any](ctx context.Context, c *Cache, name string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}

	key, err := c.key(ctx, name)
	if err != nil {
		log.Printf("[Cache] Failed to resolve key %s: %v", name, err)
		return load()
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}
		log.Printf("[Cache] Dropping undecodable entry %s", key)
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("[Cache] Failed to read %s: %v", key, err)
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if encoded, err := json.Marshal(value); err == nil {
		if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			log.Printf("[Cache] Failed to write %s: %v", key, err)
		}
	}

	return value, nil
}
