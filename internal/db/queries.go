package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
)

var timeFormats = []string{
	timeLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 +0000 UTC",
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

// InsertQuotaSample records a point-in-time quota reading.
func (db *DB) InsertQuotaSample(sample *models.QuotaSample) error {
	query := `
		INSERT INTO quota_samples (
			slot, percentage, timer_active, next_reset_epoch_ms, timestamp
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(context.Background(), query,
		sample.Slot,
		sample.Percentage,
		sample.TimerActive,
		nullInt64(sample.NextResetEpochMs),
		formatTime(sample.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert quota sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		sample.ID = id
	}

	return nil
}

// RecentQuotaSamples returns the latest samples of a slot, newest first.
// A slot of zero or less returns samples of every slot.
func (db *DB) RecentQuotaSamples(slot, limit int) ([]models.QuotaSample, error) {
	query := fmt.Sprintf(`
		SELECT id, slot, percentage, timer_active, next_reset_epoch_ms, timestamp
		FROM quota_samples
		WHERE 1 = 1 %s
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, sqlSlotFilterClause)

	rows, err := db.QueryContext(context.Background(), query, slot, slot, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query quota samples: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var samples []models.QuotaSample
	for rows.Next() {
		var s models.QuotaSample
		var reset sql.NullInt64
		var ts string

		if err := rows.Scan(&s.ID, &s.Slot, &s.Percentage, &s.TimerActive, &reset, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan quota sample: %w", err)
		}

		if reset.Valid {
			s.NextResetEpochMs = models.Int64Ptr(reset.Int64)
		}
		if t, ok := parseTimeString(ts); ok {
			s.Timestamp = t.Local()
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// InsertWakeEvent appends an entry to the wake history.
func (db *DB) InsertWakeEvent(event *models.WakeEvent) error {
	query := `
		INSERT INTO wake_events (
			attempt_id, slot, kind, reason, error, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(context.Background(), query,
		nullString(event.AttemptID),
		event.Slot,
		string(event.Kind),
		nullString(event.Reason),
		nullString(event.Error),
		formatTime(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert wake event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		event.ID = id
	}

	return nil
}

// RecentWakeEvents returns the latest wake history entries across all slots, newest first.
func (db *DB) RecentWakeEvents(limit int) ([]models.WakeEvent, error) {
	query := `
		SELECT id, attempt_id, slot, kind, reason, error, timestamp
		FROM wake_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wake events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.WakeEvent
	for rows.Next() {
		var e models.WakeEvent
		var attempt, reason, errStr sql.NullString
		var kind, ts string

		if err := rows.Scan(&e.ID, &attempt, &e.Slot, &kind, &reason, &errStr, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan wake event: %w", err)
		}

		e.AttemptID = attempt.String
		e.Kind = models.WakeEventKind(kind)
		e.Reason = reason.String
		e.Error = errStr.String
		if t, ok := parseTimeString(ts); ok {
			e.Timestamp = t.Local()
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// HourlyUsage returns per-hour usage of a slot over the last hours, oldest first.
func (db *DB) HourlyUsage(slot, hours int) ([]models.HourlyUsage, error) {
	query := fmt.Sprintf(`
		SELECT
			strftime('%%Y-%%m-%%d %%H:00:00', timestamp) as hour,
			AVG(percentage) as avg_pct,
			MAX(percentage) as max_pct,
			COUNT(*) as samples
		FROM quota_samples
		WHERE 1 = 1 %s %s
		GROUP BY hour
		ORDER BY hour ASC
	`, sqlSlotFilterClause, sqlTimeFilterClause)

	rows, err := db.QueryContext(context.Background(), query, slot, slot, fmt.Sprintf("-%d hours", hours))
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usage []models.HourlyUsage
	for rows.Next() {
		var u models.HourlyUsage
		var hourStr string

		if err := rows.Scan(&hourStr, &u.AvgPercentage, &u.MaxPercentage, &u.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan hourly usage: %w", err)
		}

		if t, ok := parseTimeString(hourStr); ok {
			u.Hour = t.Local()
		}
		usage = append(usage, u)
	}

	return usage, rows.Err()
}

// WakeEventCounts returns the number of wake events per kind over the last days.
func (db *DB) WakeEventCounts(days int) (map[models.WakeEventKind]int, error) {
	query := fmt.Sprintf(`
		SELECT kind, COUNT(*)
		FROM wake_events
		WHERE 1 = 1 %s
		GROUP BY kind
	`, sqlTimeFilterClause)

	rows, err := db.QueryContext(context.Background(), query, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, fmt.Errorf("failed to query wake event counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.WakeEventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan wake event count: %w", err)
		}
		counts[models.WakeEventKind(kind)] = n
	}

	return counts, rows.Err()
}

// Prune deletes history recorded before the given time and returns the number of rows removed.
func (db *DB) Prune(before time.Time) (int64, error) {
	cutoff := before.UTC().Format(timeLayout)

	var total int64
	for _, table := range []string{"quota_samples", "wake_events"} {
		result, err := db.ExecContext(context.Background(),
			"DELETE FROM "+table+" WHERE timestamp < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := result.RowsAffected()
		total += n
	}

	return total, nil
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
