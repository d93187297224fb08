package db

import (
	"context"
	"fmt"
)

// migration upgrades the data of a database whose user_version is below version.
type migration struct {
	version int
	stmts   []string
}

// migrations run in order. Older builds stored timestamps through the driver's
// time.Time encoding ("2006-01-02 15:04:05.999 +0000 UTC") and later ones in RFC 3339;
// datetime() only compares correctly against the plain layout.
var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`UPDATE quota_samples SET timestamp = SUBSTR(timestamp, 1, 19)
			 WHERE length(timestamp) > 19 AND timestamp LIKE '% UTC'`,
			`UPDATE wake_events SET timestamp = SUBSTR(timestamp, 1, 19)
			 WHERE length(timestamp) > 19 AND timestamp LIKE '% UTC'`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`UPDATE quota_samples SET timestamp = datetime(timestamp) WHERE timestamp LIKE '____-__-__T%'`,
			`UPDATE wake_events SET timestamp = datetime(timestamp) WHERE timestamp LIKE '____-__-__T%'`,
		},
	},
}

// SchemaVersion returns the migration level recorded in the database.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&v)
	return v, err
}

func (db *DB) migrate(ctx context.Context) error {
	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}
