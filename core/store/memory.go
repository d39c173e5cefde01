package store

import (
	"context"
	"sort"
	"sync"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
)

// MemoryStore is an in-process, mutex-guarded Store backed by flat maps
// keyed by the key's string form. It is the reference Store used by tests
// and by examples that don't need persistence across process restarts.
// RemoveDirectory removes the directory together with everything below it
// (it does not require the directory to be empty).
type MemoryStore struct {
	mu     sync.RWMutex
	prefix query.Key
	data   map[string][]byte
	meta   map[string]*metadata.Record
	dirs   map[string]bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore claiming all keys.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreAt(nil)
}

// NewMemoryStoreAt returns an empty MemoryStore claiming only keys under
// prefix, for mounting behind a Router.
func NewMemoryStoreAt(prefix query.Key) *MemoryStore {
	return &MemoryStore{
		prefix: prefix,
		data:   make(map[string][]byte),
		meta:   make(map[string]*metadata.Record),
		dirs:   make(map[string]bool),
	}
}

func (m *MemoryStore) StoreName() string {
	if m.prefix.IsEmpty() {
		return "memory"
	}
	return "memory:" + m.prefix.String()
}

func (m *MemoryStore) KeyPrefix() query.Key {
	return m.prefix
}

func (m *MemoryStore) IsSupported(_ context.Context, key query.Key) bool {
	return key.HasPrefix(m.prefix)
}

func (m *MemoryStore) Get(_ context.Context, key query.Key) ([]byte, *metadata.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key.String()]
	if !ok {
		return nil, nil, lqerror.Errorf(lqerror.KindKeyNotFound, "key %q not found", key.String())
	}
	meta, ok := m.meta[key.String()]
	if !ok {
		meta = metadata.New()
	} else {
		meta = meta.Clone()
	}
	return append([]byte(nil), data...), meta, nil
}

func (m *MemoryStore) GetBytes(ctx context.Context, key query.Key) ([]byte, error) {
	data, _, err := m.Get(ctx, key)
	return data, err
}

func (m *MemoryStore) GetMetadata(_ context.Context, key query.Key) (*metadata.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.meta[key.String()]
	if !ok {
		if _, hasData := m.data[key.String()]; !hasData && !m.dirs[key.String()] {
			return nil, lqerror.Errorf(lqerror.KindKeyNotFound, "key %q not found", key.String())
		}
		return metadata.New(), nil
	}
	return meta.Clone(), nil
}

func (m *MemoryStore) Set(_ context.Context, key query.Key, data []byte, meta *metadata.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key.String()] = append([]byte(nil), data...)
	if meta != nil {
		m.meta[key.String()] = meta.Clone()
	}
	return nil
}

func (m *MemoryStore) SetMetadata(_ context.Context, key query.Key, meta *metadata.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta == nil {
		delete(m.meta, key.String())
		return nil
	}
	m.meta[key.String()] = meta.Clone()
	return nil
}

func (m *MemoryStore) Contains(_ context.Context, key query.Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ks := key.String()
	if _, ok := m.data[ks]; ok {
		return true, nil
	}
	if _, ok := m.meta[ks]; ok {
		return true, nil
	}
	return m.dirs[ks], nil
}

func (m *MemoryStore) Remove(_ context.Context, key query.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key.String())
	delete(m.meta, key.String())
	delete(m.dirs, key.String())
	return nil
}

func (m *MemoryStore) RemoveDirectory(_ context.Context, key query.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if query.ParseKey(k).HasPrefix(key) {
			delete(m.data, k)
		}
	}
	for k := range m.meta {
		if query.ParseKey(k).HasPrefix(key) {
			delete(m.meta, k)
		}
	}
	for k := range m.dirs {
		if query.ParseKey(k).HasPrefix(key) {
			delete(m.dirs, k)
		}
	}
	return nil
}

func (m *MemoryStore) Makedir(_ context.Context, key query.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[key.String()] = true
	return nil
}

func (m *MemoryStore) IsDir(_ context.Context, key query.Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dirs[key.String()] {
		return true, nil
	}
	for _, k := range m.allKeysLocked() {
		if len(k) > len(key) && k.HasPrefix(key) {
			return true, nil
		}
	}
	return false, nil
}

// allKeysLocked returns every stored key, deduplicated across the data,
// metadata, and directory maps. Callers must hold m.mu.
func (m *MemoryStore) allKeysLocked() []query.Key {
	seen := make(map[string]bool)
	var keys []query.Key
	add := func(k string) {
		if seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, query.ParseKey(k))
	}
	for k := range m.data {
		add(k)
	}
	for k := range m.meta {
		add(k)
	}
	for k := range m.dirs {
		add(k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (m *MemoryStore) Keys(_ context.Context) ([]query.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allKeysLocked(), nil
}

func (m *MemoryStore) Listdir(ctx context.Context, key query.Key) ([]string, error) {
	children, err := m.ListdirKeys(ctx, key)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Filename()
	}
	return names, nil
}

func (m *MemoryStore) ListdirKeys(_ context.Context, key query.Key) ([]query.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var children []query.Key
	for _, candidate := range m.allKeysLocked() {
		if len(candidate) <= len(key) || !candidate.HasPrefix(key) {
			continue
		}
		child := candidate[:len(key)+1]
		if seen[child.String()] {
			continue
		}
		seen[child.String()] = true
		children = append(children, child)
	}
	return children, nil
}

func (m *MemoryStore) ListdirKeysDeep(_ context.Context, key query.Key) ([]query.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Directories implied by deeper keys are descendants too.
	seen := make(map[string]bool)
	var descendants []query.Key
	for _, candidate := range m.allKeysLocked() {
		if len(candidate) <= len(key) || !candidate.HasPrefix(key) {
			continue
		}
		for n := len(key) + 1; n <= len(candidate); n++ {
			if d := candidate[:n]; !seen[d.String()] {
				seen[d.String()] = true
				descendants = append(descendants, d)
			}
		}
	}
	return descendants, nil
}
