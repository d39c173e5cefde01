// Package rediscache implements core/cache.Cache on top of Redis,
// following the result-stream manager's use of *redis.Client in the
// registry package this repo is descended from.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liquers/liquers-go/core/cache"
	"github.com/liquers/liquers-go/core/lqerror"
)

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 1 * time.Hour

// Options configures a Cache.
type Options struct {
	Client    *redis.Client
	KeyPrefix string
	TTL       time.Duration
}

// Cache is a cache.Cache backed by Redis, storing each entry as one JSON
// document under "<KeyPrefix><key>".
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ cache.Cache       = (*Cache)(nil)
	_ cache.Invalidator = (*Cache)(nil)
)

// New returns a Cache using client.
func New(opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: opts.Client, prefix: opts.KeyPrefix, ttl: ttl}
}

func (c *Cache) redisKey(key string) string {
	return c.prefix + key
}

func (c *Cache) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, lqerror.NewWithCause(lqerror.KindNotAvailable, "read cache entry from redis", err)
	}
	var entry cache.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, lqerror.NewWithCause(lqerror.KindSerializationError, "decode cache entry", err)
	}
	return &entry, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, entry *cache.Entry) error {
	if err := cache.ValidateEntry(key, entry); err != nil {
		return err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindSerializationError, "encode cache entry", err)
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), raw, c.ttl).Err(); err != nil {
		return lqerror.NewWithCause(lqerror.KindNotAvailable, "write cache entry to redis", err)
	}
	return nil
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.redisKey(key)).Err(); err != nil {
		return lqerror.NewWithCause(lqerror.KindNotAvailable, "remove cache entry from redis", err)
	}
	return nil
}

func (c *Cache) Contains(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.redisKey(key)).Result()
	if err != nil {
		return false, lqerror.NewWithCause(lqerror.KindNotAvailable, "check cache entry in redis", err)
	}
	return n > 0, nil
}

// RemovePrefix scans and deletes every key under prefix. Redis has no
// native prefix-delete; this mirrors the SCAN-then-DEL pattern used
// throughout the registry's Pulse/Redis clients for cleanup.
func (c *Cache) RemovePrefix(ctx context.Context, prefix string) error {
	pattern := c.redisKey(prefix) + "*"
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return lqerror.NewWithCause(lqerror.KindNotAvailable, "scan cache entries in redis", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return lqerror.NewWithCause(lqerror.KindNotAvailable, "remove cache entries from redis", err)
	}
	return nil
}
