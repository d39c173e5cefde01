// Package cache defines the Cache interface the interpreter consults
// before evaluating a query and populates after, plus NoCache and
// MemoryCache reference implementations.
package cache

import (
	"context"
	"sync"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
)

// Entry is one cached evaluation result: the serialized value, its
// metadata, and the data format the bytes are encoded in.
type Entry struct {
	Data       []byte
	Metadata   *metadata.Record
	DataFormat string
}

// Cache stores evaluated query results keyed by the query's canonical
// identifier (normally the encoded, absolute query text). Implementations
// are free to evict entries at any time; a cache miss is never an error.
type Cache interface {
	// Get returns the cached entry for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	// Set stores entry under key.
	Set(ctx context.Context, key string, entry *Entry) error
	// Remove evicts key, if present.
	Remove(ctx context.Context, key string) error
	// Contains reports whether key is cached, without fetching its value.
	Contains(ctx context.Context, key string) (bool, error)
}

// ValidateEntry rejects an entry whose metadata names a different query
// than the cache key it is stored under. Every mutating Cache
// implementation calls it from Set.
func ValidateEntry(key string, entry *Entry) error {
	if entry == nil || entry.Metadata == nil || entry.Metadata.Query == "" {
		return nil
	}
	if entry.Metadata.Query != key {
		return lqerror.Errorf(lqerror.KindGeneral, "cache entry metadata query %q does not match cache key %q", entry.Metadata.Query, key)
	}
	return nil
}

// Invalidator is implemented by caches that can evict by key prefix, used
// when a store write invalidates every query that read through it.
type Invalidator interface {
	RemovePrefix(ctx context.Context, prefix string) error
}

// NoCache never stores anything; every Get is a miss. It is the safe
// default for commands with side effects that must not be memoized.
type NoCache struct{}

var (
	_ Cache       = NoCache{}
	_ Invalidator = NoCache{}
)

func (NoCache) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }
func (NoCache) Contains(context.Context, string) (bool, error)    { return false, nil }

func (NoCache) Set(context.Context, string, *Entry) error {
	return lqerror.New(lqerror.KindCacheNotSupported, "set is not supported by the null cache")
}

func (NoCache) Remove(context.Context, string) error {
	return lqerror.New(lqerror.KindCacheNotSupported, "remove is not supported by the null cache")
}

func (NoCache) RemovePrefix(context.Context, string) error {
	return lqerror.New(lqerror.KindCacheNotSupported, "remove by prefix is not supported by the null cache")
}

// MemoryCache is an in-process, mutex-guarded Cache backed by a flat map.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

var (
	_ Cache       = (*MemoryCache)(nil)
	_ Invalidator = (*MemoryCache)(nil)
)

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Entry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) error {
	if err := ValidateEntry(key, entry); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Contains(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok, nil
}

// RemovePrefix evicts every key with the given prefix.
func (c *MemoryCache) RemovePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}
