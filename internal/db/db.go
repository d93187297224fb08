// Package db stores quota samples and wake events in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// DB is the history database. It embeds the connection pool so callers can run
// ad-hoc queries in tests.
type DB struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quota_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot INTEGER NOT NULL,
		percentage INTEGER NOT NULL DEFAULT 0,
		timer_active INTEGER NOT NULL DEFAULT 0,
		next_reset_epoch_ms INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quota_samples_slot_time ON quota_samples(slot, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_quota_samples_timestamp ON quota_samples(timestamp)`,
	`CREATE TABLE IF NOT EXISTS wake_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT,
		slot INTEGER NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wake_events_attempt ON wake_events(attempt_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wake_events_timestamp ON wake_events(timestamp)`,
}

// New opens the history database at path, creating the file, its directory and
// the tables as needed.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every slot poller writes here; serialize them on one connection.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path}
	if err := db.init(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return db.migrate(ctx)
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the database.
func (db *DB) Close() error {
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum reclaims the space freed by Prune.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
