package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *BoltCacheStore {
	t.Helper()
	cache, err := NewBoltCacheStoreWithPath(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestBoltCachePutGet(t *testing.T) {
	cache := newTestCache(t)

	_, found, err := cache.Get("weather", "nyc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Put("weather", "nyc", "sunny"))

	v, found, err := cache.Get("weather", "nyc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sunny", v)

	// Empty string is a real value, distinct from a missing key.
	require.NoError(t, cache.Put("weather", "void", ""))
	v, found, err = cache.Get("weather", "void")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)

	// Buckets are isolated.
	_, found, err = cache.Get("other", "nyc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltCacheKeysExistsDelete(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Put("b", "k1", "v1"))
	require.NoError(t, cache.Put("b", "k2", "v2"))

	keys, err := cache.Keys("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)

	keys, err = cache.Keys("missing")
	require.NoError(t, err)
	assert.Empty(t, keys)

	ok, err := cache.Exists("b", "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	existed, err := cache.Delete("b", "k1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = cache.Delete("b", "k1")
	require.NoError(t, err)
	assert.False(t, existed)

	ok, err = cache.Exists("b", "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltCachePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	cache, err := NewBoltCacheStoreWithPath(dbPath)
	require.NoError(t, err)
	require.NoError(t, cache.Put("b", "k", "v"))
	require.NoError(t, cache.Close())

	reopened, err := NewBoltCacheStoreWithPath(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	v, found, err := reopened.Get("b", "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}
