package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopdrop/slopdrop/internal/testutil"
	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/storage"
)

var (
	user  = engine.CallerContext{Name: "user", Origin: "irc"}
	admin = engine.CallerContext{Name: "owner", Origin: "console", Admin: true}
)

// TestScriptLifecycle drives a realistic session: define helpers, use them,
// inspect history, roll back, and confirm the environment follows.
func TestScriptLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng := testutil.NewEngine(t, engine.Config{})

	// Define a helper and use it.
	res, err := eng.Submit(ctx, "proc double {x} {expr {$x * 2}}", user)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotNil(t, res.Commit)
	assert.Contains(t, res.Commit.Summary, "+proc: double")

	res, err = eng.Submit(ctx, "double 21", user)
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, res.Output)
	assert.Nil(t, res.Commit, "calling a proc changes nothing")

	// Build on it.
	res, err = eng.Submit(ctx, "set answer [double 21]", user)
	require.NoError(t, err)
	require.NotNil(t, res.Commit)
	target := res.Commit

	res, err = eng.Submit(ctx, "set answer 0; set extra junk", user)
	require.NoError(t, err)
	require.NotNil(t, res.Commit)

	// History reads newest first.
	infos, err := eng.History(0)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Contains(t, infos[0].Message, "set answer 0")

	// Roll back to the commit holding answer=42.
	info, err := eng.Rollback(target.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Seq, "rollback appends")

	res, err = eng.Submit(ctx, "set answer", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, res.Output)

	res, err = eng.Submit(ctx, "info exists extra", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, res.Output)

	// The helper survived the whole excursion.
	res, err = eng.Submit(ctx, "double 4", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"8"}, res.Output)
}

// TestStatePersistsAcrossRestart verifies a fresh engine over the same
// databases resumes exactly where the previous one stopped.
func TestStatePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.db")
	cachePath := filepath.Join(dir, "cache.db")

	open := func() (*engine.Engine, func()) {
		store, err := storage.NewSQLiteCommitStoreWithPath(statePath)
		require.NoError(t, err)
		cache, err := storage.NewBoltCacheStoreWithPath(cachePath)
		require.NoError(t, err)
		eng, err := engine.New(store, cache, engine.Config{})
		require.NoError(t, err)
		return eng, func() {
			_ = cache.Close()
			_ = store.Close()
		}
	}

	eng, closeFirst := open()
	_, err := eng.Submit(ctx, "proc greet {who} {return hello-$who}; set motto persistent", user)
	require.NoError(t, err)
	_, err = eng.Submit(ctx, "cache::put facts pi 3.14159", user)
	require.NoError(t, err)
	closeFirst()

	eng, closeSecond := open()
	defer closeSecond()

	res, err := eng.Submit(ctx, "greet world", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello-world"}, res.Output)

	res, err = eng.Submit(ctx, "set motto", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"persistent"}, res.Output)

	// The side-cache persists too, outside versioned state.
	res, err = eng.Submit(ctx, "cache::get facts pi", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.14159"}, res.Output)
}

// TestCacheOutsideHistory verifies cache writes never commit and rollback
// never touches them.
func TestCacheOutsideHistory(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, engine.Config{})

	first, err := eng.Submit(ctx, "set a 1", user)
	require.NoError(t, err)
	require.NotNil(t, first.Commit)

	res, err := eng.Submit(ctx, "cache::put b k v", user)
	require.NoError(t, err)
	assert.Nil(t, res.Commit, "cache writes are not versioned")

	_, err = eng.Rollback(first.Commit.ID, admin)
	require.NoError(t, err)

	res, err = eng.Submit(ctx, "cache::get b k", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, res.Output, "rollback must not clear the cache")
}

// TestOutputPaginationEndToEnd verifies long output is delivered without
// loss across pages for interleaved callers.
func TestOutputPaginationEndToEnd(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, engine.Config{MaxOutputLines: 5})

	res, err := eng.Submit(ctx, "for {set i 0} {$i < 23} {incr i} {puts row$i}", user)
	require.NoError(t, err)
	require.True(t, res.MoreAvailable)

	var rows []string
	page := res
	for {
		lines := page.Output
		if page.MoreAvailable {
			lines = lines[:len(lines)-1] // drop the continuation notice
		}
		rows = append(rows, lines...)
		if !page.MoreAvailable {
			break
		}
		page = eng.More(user)
	}

	require.Len(t, rows, 23)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("row%d", i), row)
	}
}

// TestPrivilegeEndToEnd verifies the full denial path leaves no trace in
// state or history.
func TestPrivilegeEndToEnd(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, engine.Config{AdminVars: []string{"ops"}})

	_, err := eng.Submit(ctx, "proc guard {} {return safe}", admin)
	require.NoError(t, err)

	res, err := eng.Submit(ctx, "proc guard {} {return pwned}; set sneaky 1", user)
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, res.Output[len(res.Output)-1], "requires privileges")

	// Nothing from the denied submission exists.
	res, err = eng.Submit(ctx, "guard", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"safe"}, res.Output)
	res, err = eng.Submit(ctx, "info exists sneaky", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, res.Output)

	infos, err := eng.History(0)
	require.NoError(t, err)
	require.Len(t, infos, 1, "only the admin's definition committed")
}

// TestConcurrentCallers verifies evaluations serialize and every mutation
// lands exactly once in history.
func TestConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, engine.Config{})

	_, err := eng.Submit(ctx, "set total 0", user)
	require.NoError(t, err)

	const workers = 6
	const perWorker = 4
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			caller := engine.CallerContext{Name: fmt.Sprintf("w%d", w), Origin: "irc"}
			for i := 0; i < perWorker; i++ {
				_, err := eng.Submit(ctx, "incr total", caller)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	res, err := eng.Submit(ctx, "set total", user)
	require.NoError(t, err)
	assert.Equal(t, []string{fmt.Sprintf("%d", workers*perWorker)}, res.Output)

	// set total 0, then one commit per increment.
	infos, err := eng.History(workers*perWorker + 10)
	require.NoError(t, err)
	assert.Len(t, infos, workers*perWorker+1)
}
