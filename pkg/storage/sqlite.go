package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteCommitStore implements engine.CommitStore using SQLite storage.
// Commits are append-only: the store never updates or deletes rows.
type SQLiteCommitStore struct {
	db *sql.DB
}

// NewSQLiteCommitStore creates a commit store at the default location.
// Database location: ~/.slopdrop/state.db
func NewSQLiteCommitStore() (*SQLiteCommitStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewSQLiteCommitStoreWithPath(filepath.Join(homeDir, ".slopdrop", "state.db"))
}

// NewSQLiteCommitStoreWithPath creates a commit store with a custom database
// path. Useful for testing.
func NewSQLiteCommitStoreWithPath(dbPath string) (*SQLiteCommitStore, error) {
	// Create directory if it doesn't exist
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	// Initialize database schema
	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteCommitStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteCommitStore) Close() error {
	return s.db.Close()
}

// Append persists a commit. The sequence number and commit ID are both
// unique-constrained, so a duplicate append fails rather than overwriting
// history.
func (s *SQLiteCommitStore) Append(commit *engine.Commit) error {
	if commit == nil {
		return fmt.Errorf("cannot append nil commit")
	}

	query := `
		INSERT INTO commits (seq, id, created_at, author, message, summary, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		commit.Seq,
		commit.ID,
		commit.Timestamp,
		commit.Author,
		commit.Message,
		commit.Summary,
		commit.Snapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to append commit: %w", err)
	}

	return nil
}

// LoadLatest returns the commit with the highest sequence number, or
// (nil, nil) when the store is empty.
func (s *SQLiteCommitStore) LoadLatest() (*engine.Commit, error) {
	query := `
		SELECT seq, id, created_at, author, message, summary, snapshot
		FROM commits
		ORDER BY seq DESC
		LIMIT 1
	`

	commit, err := scanCommit(s.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest commit: %w", err)
	}
	return commit, nil
}

// LoadAt retrieves a commit by its full ID or by a prefix of at least
// 8 characters. Prefix lookups resolve to the newest matching commit.
func (s *SQLiteCommitStore) LoadAt(id string) (*engine.Commit, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: commit ID cannot be empty", errors.ErrCommitNotFound)
	}

	query := `
		SELECT seq, id, created_at, author, message, summary, snapshot
		FROM commits
		WHERE id = ?
	`
	args := []interface{}{id}
	if len(id) >= 8 && len(id) < 40 {
		query = `
			SELECT seq, id, created_at, author, message, summary, snapshot
			FROM commits
			WHERE id LIKE ?
			ORDER BY seq DESC
			LIMIT 1
		`
		args = []interface{}{id + "%"}
	}

	commit, err := scanCommit(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errors.ErrCommitNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", id, err)
	}
	return commit, nil
}

// History returns metadata for the most recent limit commits, newest first.
// Snapshots are not loaded.
func (s *SQLiteCommitStore) History(limit int) ([]*engine.CommitInfo, error) {
	query := `
		SELECT seq, id, created_at, author, message, summary
		FROM commits
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []*engine.CommitInfo
	for rows.Next() {
		info := &engine.CommitInfo{}
		if err := rows.Scan(&info.Seq, &info.ID, &info.Timestamp, &info.Author, &info.Message, &info.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan commit row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return infos, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommit(row rowScanner) (*engine.Commit, error) {
	commit := &engine.Commit{}
	err := row.Scan(
		&commit.Seq,
		&commit.ID,
		&commit.Timestamp,
		&commit.Author,
		&commit.Message,
		&commit.Summary,
		&commit.Snapshot,
	)
	if err != nil {
		return nil, err
	}
	return commit, nil
}
