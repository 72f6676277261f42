package cli

import (
	"fmt"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/storage"
)

// openEngine wires the configured stores into an engine. The returned
// cleanup closes both stores.
func openEngine(settings *Settings) (*engine.Engine, func(), error) {
	store, err := storage.NewSQLiteCommitStoreWithPath(settings.statePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open commit store: %w", err)
	}

	cache, err := storage.NewBoltCacheStoreWithPath(settings.cachePath())
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	eng, err := engine.New(store, cache, settings.EngineConfig())
	if err != nil {
		_ = cache.Close()
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = cache.Close()
		_ = store.Close()
	}
	return eng, cleanup, nil
}
