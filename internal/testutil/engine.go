// Package testutil provides shared helpers for tests that need a fully
// wired engine backed by temporary databases.
package testutil

import (
	"testing"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/storage"
)

// NewEngine builds an engine over fresh temporary SQLite and Bolt databases.
// The stores are closed when the test finishes.
func NewEngine(t *testing.T, cfg engine.Config) *engine.Engine {
	t.Helper()

	dir := t.TempDir()

	store, err := storage.NewSQLiteCommitStoreWithPath(dir + "/state.db")
	if err != nil {
		t.Fatalf("failed to open commit store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cache, err := storage.NewBoltCacheStoreWithPath(dir + "/cache.db")
	if err != nil {
		t.Fatalf("failed to open cache store: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	eng, err := engine.New(store, cache, cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}
