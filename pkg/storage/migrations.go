package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 1

// InitializeDatabase creates the SQLite database schema for commit history.
// This includes migration version tracking to support future schema updates.
func InitializeDatabase(db *sql.DB) error {
	// Create migrations table to track schema version
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Check current version
	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	// Apply migrations
	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

// applyMigration1 creates the initial database schema.
func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Commits table - append-only history of environment snapshots
	commitsTable := `
	CREATE TABLE commits (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL,
		author TEXT NOT NULL,
		message TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		snapshot BLOB NOT NULL
	);`

	if _, err := tx.Exec(commitsTable); err != nil {
		return fmt.Errorf("failed to create commits table: %w", err)
	}

	// Indexes for common queries
	commitsIndexes := []string{
		"CREATE INDEX idx_commits_created_at ON commits(created_at DESC);",
		"CREATE INDEX idx_commits_author ON commits(author, seq DESC);",
	}

	for _, idx := range commitsIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create commit index: %w", err)
		}
	}

	// Record migration
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
