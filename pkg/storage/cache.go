package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltCacheStore implements tcl.CacheStore on top of a Bolt database.
// Each cache bucket maps to a Bolt bucket, so buckets are cheap to create
// and isolated from each other. The cache is deliberately outside the
// commit history: entries survive restarts but are never versioned.
type BoltCacheStore struct {
	db *bolt.DB
}

// NewBoltCacheStore opens the cache database at the default location.
// Database location: ~/.slopdrop/cache.db
func NewBoltCacheStore() (*BoltCacheStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewBoltCacheStoreWithPath(filepath.Join(homeDir, ".slopdrop", "cache.db"))
}

// NewBoltCacheStoreWithPath opens a cache database at a custom path.
// Useful for testing.
func NewBoltCacheStoreWithPath(dbPath string) (*BoltCacheStore, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	return &BoltCacheStore{db: db}, nil
}

// Close closes the cache database.
func (c *BoltCacheStore) Close() error {
	return c.db.Close()
}

// Put stores a value under bucket/key, creating the bucket if needed.
func (c *BoltCacheStore) Put(bucket, key, value string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get retrieves a value. The second return distinguishes a stored empty
// string from a missing key.
func (c *BoltCacheStore) Get(bucket, key string) (string, bool, error) {
	var value string
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache entry %s/%s: %w", bucket, key, err)
	}
	return value, found, nil
}

// Keys lists all keys in a bucket in byte order. A missing bucket yields an
// empty list.
func (c *BoltCacheStore) Keys(bucket string) ([]string, error) {
	var keys []string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys in %s: %w", bucket, err)
	}
	return keys, nil
}

// Exists reports whether bucket/key holds a value.
func (c *BoltCacheStore) Exists(bucket, key string) (bool, error) {
	_, found, err := c.Get(bucket, key)
	return found, err
}

// Delete removes a key and reports whether it was present.
func (c *BoltCacheStore) Delete(bucket, key string) (bool, error) {
	var existed bool
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if b.Get([]byte(key)) == nil {
			return nil
		}
		existed = true
		return b.Delete([]byte(key))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry %s/%s: %w", bucket, key, err)
	}
	return existed, nil
}
