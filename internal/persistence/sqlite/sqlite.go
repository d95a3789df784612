// Package sqlite implements the persistence repositories on SQLite via the
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/alarmd/internal/persistence"
	_ "modernc.org/sqlite"
)

// timeLayout preserves sub-second precision and the zone offset of stored instants.
const timeLayout = time.RFC3339Nano

// Storage implements persistence.Store on a SQLite database.
type Storage struct {
	db *sql.DB
}

// Open connects to the database named by dsn and applies connection pragmas.
// WAL mode and a busy timeout keep concurrent readers from tripping over the
// single writer.
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for tests.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Migrate creates the schema when absent. The DDL runs inside one transaction
// so an interrupted migration leaves no partial schema behind.
func (s *Storage) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS alarm_definitions (
	id               TEXT PRIMARY KEY,
	hour             INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
	minute           INTEGER NOT NULL CHECK (minute BETWEEN 0 AND 59),
	recurrence       INTEGER NOT NULL CHECK (recurrence BETWEEN 0 AND 127),
	enabled          INTEGER NOT NULL,
	label            TEXT NOT NULL DEFAULT '',
	vibrate          INTEGER NOT NULL DEFAULT 0,
	alert_ref        TEXT NOT NULL DEFAULT '',
	silent           INTEGER NOT NULL DEFAULT 0,
	snooze_duration  INTEGER NOT NULL DEFAULT 0,
	delete_after_use INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alarm_instances (
	id            TEXT PRIMARY KEY,
	definition_id TEXT NOT NULL REFERENCES alarm_definitions(id) ON DELETE CASCADE,
	trigger_at    TEXT NOT NULL,
	state         INTEGER NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	vibrate       INTEGER NOT NULL DEFAULT 0,
	alert_ref     TEXT NOT NULL DEFAULT '',
	silent        INTEGER NOT NULL DEFAULT 0,
	snoozed_until TEXT,
	generation    INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alarm_instances_definition
	ON alarm_instances(definition_id);
`
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// WithTransaction executes fn within a transaction, rolling back on error or panic.
func (s *Storage) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// mapError translates driver errors onto the persistence sentinels. The
// modernc driver surfaces SQLite error codes in message text, so detection is
// by substring, matching how the driver formats them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY constraint"):
		return fmt.Errorf("%w: %s", persistence.ErrDuplicate, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", persistence.ErrForeignKeyViolation, msg)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, msg)
	default:
		return err
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", value, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
