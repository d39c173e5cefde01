// Package store defines the Store interface the interpreter reads and
// writes resource data and metadata through, plus a Router that dispatches
// to the first store claiming a key and a MemoryStore reference
// implementation.
package store

import (
	"context"
	"sync"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
)

// Store is the persistence boundary for resource bytes and their metadata.
// Implementations need not support every method: a read-only store returns
// a NotSupported error from the mutators it cannot honor.
type Store interface {
	// StoreName is a human-readable identifier, derived from the store's
	// key prefix.
	StoreName() string
	// KeyPrefix is the prefix common to every key this store owns. An
	// empty prefix means the store claims all keys.
	KeyPrefix() query.Key
	// Get reads the bytes and metadata stored at key. Fails KeyNotFound
	// if key holds no data.
	Get(ctx context.Context, key query.Key) ([]byte, *metadata.Record, error)
	// GetBytes reads the raw bytes stored at key.
	GetBytes(ctx context.Context, key query.Key) ([]byte, error)
	// GetMetadata reads the metadata record stored at key, without its data.
	GetMetadata(ctx context.Context, key query.Key) (*metadata.Record, error)
	// Set atomically associates bytes and metadata with key.
	Set(ctx context.Context, key query.Key, data []byte, meta *metadata.Record) error
	// SetMetadata updates the metadata record stored at key.
	SetMetadata(ctx context.Context, key query.Key, meta *metadata.Record) error
	// Remove deletes data and metadata stored at key.
	Remove(ctx context.Context, key query.Key) error
	// RemoveDirectory deletes everything stored under key. Whether a
	// non-empty directory may be removed is implementation-defined; every
	// implementation documents its policy.
	RemoveDirectory(ctx context.Context, key query.Key) error
	// Contains reports whether key has any data or metadata stored.
	Contains(ctx context.Context, key query.Key) (bool, error)
	// IsDir reports whether key names a directory: either created by
	// Makedir or implied by keys stored below it.
	IsDir(ctx context.Context, key query.Key) (bool, error)
	// Keys returns every key this store holds, bounded by its prefix.
	Keys(ctx context.Context) ([]query.Key, error)
	// Listdir lists the names of key's immediate children (not full keys).
	Listdir(ctx context.Context, key query.Key) ([]string, error)
	// ListdirKeys lists key's immediate children as full keys.
	ListdirKeys(ctx context.Context, key query.Key) ([]query.Key, error)
	// ListdirKeysDeep lists every descendant of key. A leaf key yields the
	// empty sequence.
	ListdirKeysDeep(ctx context.Context, key query.Key) ([]query.Key, error)
	// Makedir creates a directory at key.
	Makedir(ctx context.Context, key query.Key) error
	// IsSupported reports whether this store owns key (a prefix test).
	IsSupported(ctx context.Context, key query.Key) bool
}

// Router composes multiple stores: every call is dispatched to the first
// registered store whose IsSupported returns true for the key, or fails
// KeyNotSupported. A Router is itself a Store, so routers can be nested.
type Router struct {
	mu     sync.RWMutex
	stores []Store
}

var _ Store = (*Router)(nil)

// NewRouter returns a Router dispatching to stores in the given order.
func NewRouter(stores ...Store) *Router {
	return &Router{stores: stores}
}

// Mount appends a store to the routing order.
func (r *Router) Mount(s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = append(r.stores, s)
}

func (r *Router) resolve(ctx context.Context, key query.Key) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if s.IsSupported(ctx, key) {
			return s, nil
		}
	}
	return nil, lqerror.Errorf(lqerror.KindKeyNotSupported, "no store supports key %q", key.String())
}

func (r *Router) StoreName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := "router("
	for i, s := range r.stores {
		if i > 0 {
			name += ","
		}
		name += s.StoreName()
	}
	return name + ")"
}

// KeyPrefix of a router is the empty prefix: the set of keys it serves is
// the union of its stores' prefixes, which has no common prefix in general.
func (r *Router) KeyPrefix() query.Key { return nil }

func (r *Router) Get(ctx context.Context, key query.Key) ([]byte, *metadata.Record, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return s.Get(ctx, key)
}

func (r *Router) GetBytes(ctx context.Context, key query.Key) ([]byte, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.GetBytes(ctx, key)
}

func (r *Router) GetMetadata(ctx context.Context, key query.Key) (*metadata.Record, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.GetMetadata(ctx, key)
}

func (r *Router) Set(ctx context.Context, key query.Key, data []byte, meta *metadata.Record) error {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data, meta)
}

func (r *Router) SetMetadata(ctx context.Context, key query.Key, meta *metadata.Record) error {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return err
	}
	return s.SetMetadata(ctx, key, meta)
}

func (r *Router) Remove(ctx context.Context, key query.Key) error {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return err
	}
	return s.Remove(ctx, key)
}

func (r *Router) RemoveDirectory(ctx context.Context, key query.Key) error {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return err
	}
	return s.RemoveDirectory(ctx, key)
}

func (r *Router) Contains(ctx context.Context, key query.Key) (bool, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return false, err
	}
	return s.Contains(ctx, key)
}

func (r *Router) IsDir(ctx context.Context, key query.Key) (bool, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return false, err
	}
	return s.IsDir(ctx, key)
}

// Keys returns the union of every mounted store's keys.
func (r *Router) Keys(ctx context.Context) ([]query.Key, error) {
	r.mu.RLock()
	stores := append([]Store(nil), r.stores...)
	r.mu.RUnlock()
	var all []query.Key
	for _, s := range stores {
		keys, err := s.Keys(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
	}
	return all, nil
}

func (r *Router) Listdir(ctx context.Context, key query.Key) ([]string, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.Listdir(ctx, key)
}

func (r *Router) ListdirKeys(ctx context.Context, key query.Key) ([]query.Key, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.ListdirKeys(ctx, key)
}

func (r *Router) ListdirKeysDeep(ctx context.Context, key query.Key) ([]query.Key, error) {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.ListdirKeysDeep(ctx, key)
}

func (r *Router) Makedir(ctx context.Context, key query.Key) error {
	s, err := r.resolve(ctx, key)
	if err != nil {
		return err
	}
	return s.Makedir(ctx, key)
}

func (r *Router) IsSupported(ctx context.Context, key query.Key) bool {
	_, err := r.resolve(ctx, key)
	return err == nil
}
