package storage

import (
	goerrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/errors"
)

func newTestStore(t *testing.T) *SQLiteCommitStore {
	t.Helper()
	store, err := NewSQLiteCommitStoreWithPath(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCommit(seq int64, id string) *engine.Commit {
	return &engine.Commit{
		ID:        id,
		Seq:       seq,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Author:    "tester",
		Message:   "Evaluated set a 1",
		Summary:   "+var: a",
		Snapshot:  []byte(`{"vars":[],"procs":[]}`),
	}
}

func TestSQLiteAppendAndLoadLatest(t *testing.T) {
	store := newTestStore(t)

	// Empty store: no latest, no error.
	latest, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	c1 := testCommit(1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	c2 := testCommit(2, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, store.Append(c1))
	require.NoError(t, store.Append(c2))

	latest, err = store.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, c2.ID, latest.ID)
	assert.Equal(t, int64(2), latest.Seq)
	assert.Equal(t, c2.Snapshot, latest.Snapshot)
	assert.Equal(t, "tester", latest.Author)
}

func TestSQLiteAppendIsAppendOnly(t *testing.T) {
	store := newTestStore(t)

	c := testCommit(1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, store.Append(c))

	// Same sequence number again must fail, never overwrite.
	dup := testCommit(1, "cccccccccccccccccccccccccccccccccccccccc")
	assert.Error(t, store.Append(dup))

	// Same ID under a new sequence must fail too.
	dup = testCommit(2, c.ID)
	assert.Error(t, store.Append(dup))

	assert.Error(t, store.Append(nil))
}

func TestSQLiteLoadAt(t *testing.T) {
	store := newTestStore(t)

	c := testCommit(1, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, store.Append(c))

	// Full ID.
	got, err := store.LoadAt(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	// Prefix of at least 8 characters.
	got, err = store.LoadAt("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	// Unknown commit wraps the sentinel.
	_, err = store.LoadAt("0000000000000000000000000000000000000000")
	assert.True(t, goerrors.Is(err, errors.ErrCommitNotFound))

	_, err = store.LoadAt("")
	assert.True(t, goerrors.Is(err, errors.ErrCommitNotFound))
}

func TestSQLiteHistory(t *testing.T) {
	store := newTestStore(t)

	ids := []string{
		"1111111111111111111111111111111111111111",
		"2222222222222222222222222222222222222222",
		"3333333333333333333333333333333333333333",
	}
	for i, id := range ids {
		require.NoError(t, store.Append(testCommit(int64(i+1), id)))
	}

	infos, err := store.History(2)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, int64(3), infos[0].Seq)
	assert.Equal(t, int64(2), infos[1].Seq)

	infos, err = store.History(10)
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}

func TestSQLiteReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLiteCommitStoreWithPath(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Append(testCommit(1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteCommitStoreWithPath(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	latest, err := reopened.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1), latest.Seq)
}
