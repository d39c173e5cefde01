package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := query.NewKey("a", "b", "c.txt")
	meta := metadata.New()
	meta.Filename = "c.txt"

	require.NoError(t, s.Set(ctx, key, []byte("payload"), meta))

	data, gotMeta, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, "c.txt", gotMeta.Filename)

	ok, err := s.Contains(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, key))
	_, err = s.GetBytes(ctx, key)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindKeyNotFound))
}

func TestMemoryStoreDirectories(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, query.NewKey("d", "one"), []byte("1"), nil))
	require.NoError(t, s.Set(ctx, query.NewKey("d", "sub", "two"), []byte("2"), nil))

	isDir, err := s.IsDir(ctx, query.NewKey("d"))
	require.NoError(t, err)
	assert.True(t, isDir)

	names, err := s.Listdir(ctx, query.NewKey("d"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "sub"}, names)

	keys, err := s.ListdirKeys(ctx, query.NewKey("d"))
	require.NoError(t, err)
	require.Len(t, keys, 2)

	deep, err := s.ListdirKeysDeep(ctx, query.NewKey("d"))
	require.NoError(t, err)
	paths := make([]string, len(deep))
	for i, k := range deep {
		paths[i] = k.String()
	}
	assert.ElementsMatch(t, []string{"d/one", "d/sub", "d/sub/two"}, paths)

	// A leaf key has no descendants.
	leafDeep, err := s.ListdirKeysDeep(ctx, query.NewKey("d", "one"))
	require.NoError(t, err)
	assert.Empty(t, leafDeep)

	require.NoError(t, s.RemoveDirectory(ctx, query.NewKey("d", "sub")))
	ok, err := s.Contains(ctx, query.NewKey("d", "sub", "two"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreMakedir(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Makedir(ctx, query.NewKey("empty")))

	isDir, err := s.IsDir(ctx, query.NewKey("empty"))
	require.NoError(t, err)
	assert.True(t, isDir)

	ok, err := s.Contains(ctx, query.NewKey("empty"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStorePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreAt(query.NewKey("mnt"))
	assert.Equal(t, "memory:mnt", s.StoreName())
	assert.True(t, s.IsSupported(ctx, query.NewKey("mnt", "x")))
	assert.False(t, s.IsSupported(ctx, query.NewKey("other", "x")))
}

func TestRouterDispatchesBySupport(t *testing.T) {
	ctx := context.Background()
	first := NewMemoryStoreAt(query.NewKey("a"))
	second := NewMemoryStoreAt(query.NewKey("b"))
	r := NewRouter(first, second)

	require.NoError(t, r.Set(ctx, query.NewKey("a", "x"), []byte("ax"), nil))
	require.NoError(t, r.Set(ctx, query.NewKey("b", "y"), []byte("by"), nil))

	data, err := r.GetBytes(ctx, query.NewKey("a", "x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ax"), data)

	// The write landed in the owning store, not the other one.
	ok, err := first.Contains(ctx, query.NewKey("a", "x"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = second.Contains(ctx, query.NewKey("a", "x"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.GetBytes(ctx, query.NewKey("c", "z"))
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindKeyNotSupported))
	assert.False(t, r.IsSupported(ctx, query.NewKey("c", "z")))

	keys, err := r.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRouterFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	all := NewMemoryStore() // claims everything
	scoped := NewMemoryStoreAt(query.NewKey("a"))
	r := NewRouter(scoped, all)

	require.NoError(t, r.Set(ctx, query.NewKey("a", "x"), []byte("v"), nil))
	ok, err := scoped.Contains(ctx, query.NewKey("a", "x"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = all.Contains(ctx, query.NewKey("a", "x"))
	require.NoError(t, err)
	assert.False(t, ok)
}
