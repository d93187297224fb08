package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "glm-tray", "history.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", db.Path(), dbPath)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestSchema_Objects(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	objects := map[string]string{
		"quota_samples":               "table",
		"wake_events":                 "table",
		"idx_quota_samples_slot_time": "index",
		"idx_quota_samples_timestamp": "index",
		"idx_wake_events_attempt":     "index",
		"idx_wake_events_timestamp":   "index",
	}
	for name, kind := range objects {
		var got string
		err := db.QueryRowContext(context.Background(),
			"SELECT type FROM sqlite_master WHERE name = ?", name).Scan(&got)
		if err != nil {
			t.Errorf("%s %s missing: %v", kind, name, err)
			continue
		}
		if got != kind {
			t.Errorf("%s has type %s, want %s", name, got, kind)
		}
	}
}

func TestNew_WALMode(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %s, want wal", mode)
	}
}

func TestMigrate_RecordsVersion(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if want := migrations[len(migrations)-1].version; v != want {
		t.Errorf("schema version = %d, want %d", v, want)
	}
}

func TestMigrate_NormalizesTimestamps(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Build a database the way an older release left it: tables present,
	// no recorded version and timestamps in the driver formats.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	ctx := context.Background()
	for _, stmt := range schema {
		if _, err := raw.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	legacy := []struct{ table, ts string }{
		{"quota_samples", "2026-03-01 10:15:30.123456 +0000 UTC"},
		{"wake_events", "2026-03-01T11:00:05Z"},
	}
	for _, row := range legacy {
		var stmt string
		if row.table == "quota_samples" {
			stmt = "INSERT INTO quota_samples (slot, percentage, timestamp) VALUES (1, 10, ?)"
		} else {
			stmt = "INSERT INTO wake_events (slot, kind, timestamp) VALUES (1, 'wake_sent', ?)"
		}
		if _, err := raw.ExecContext(ctx, stmt, row.ts); err != nil {
			t.Fatalf("insert into %s: %v", row.table, err)
		}
	}
	_ = raw.Close()

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	want := map[string]string{
		"quota_samples": "2026-03-01 10:15:30",
		"wake_events":   "2026-03-01 11:00:05",
	}
	for table, ts := range want {
		var got string
		if err := db.QueryRowContext(ctx, "SELECT timestamp || '' FROM "+table).Scan(&got); err != nil {
			t.Fatalf("select from %s: %v", table, err)
		}
		if got != ts {
			t.Errorf("%s timestamp = %q, want %q", table, got, ts)
		}
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := db.ExecContext(context.Background(),
		"INSERT INTO wake_events (slot, kind) VALUES (3, 'wake_confirmed')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM wake_events").Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("wake_events has %d rows after reopen, want 1", n)
	}
}

func TestVacuum(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
}

func TestClose(t *testing.T) {
	db := newTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := db.QueryContext(context.Background(), "SELECT 1"); err == nil {
		t.Error("Expected error querying closed database")
	}
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db
}
