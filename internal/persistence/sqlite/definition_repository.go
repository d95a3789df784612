package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/persistence"
)

const definitionColumns = `id, hour, minute, recurrence, enabled, label, vibrate, alert_ref, silent, snooze_duration, delete_after_use, created_at, updated_at`

// CreateDefinition inserts a new alarm definition.
func (s *Storage) CreateDefinition(ctx context.Context, def alarm.Definition) error {
	if def.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO alarm_definitions (`+definitionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			def.ID,
			def.Hour,
			def.Minute,
			int(def.Recurrence.Bits()),
			boolToInt(def.Enabled),
			def.Label,
			boolToInt(def.Vibrate),
			def.AlertRef,
			boolToInt(def.Silent),
			int64(def.SnoozeDuration),
			boolToInt(def.DeleteAfterUse),
			formatTime(def.CreatedAt),
			formatTime(def.UpdatedAt),
		)
		return mapError(err)
	})
}

// UpdateDefinition rewrites an existing definition.
func (s *Storage) UpdateDefinition(ctx context.Context, def alarm.Definition) error {
	return retryOp(defaultRetryConfig, func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE alarm_definitions
			SET hour = ?, minute = ?, recurrence = ?, enabled = ?, label = ?,
				vibrate = ?, alert_ref = ?, silent = ?, snooze_duration = ?,
				delete_after_use = ?, updated_at = ?
			WHERE id = ?`,
			def.Hour,
			def.Minute,
			int(def.Recurrence.Bits()),
			boolToInt(def.Enabled),
			def.Label,
			boolToInt(def.Vibrate),
			def.AlertRef,
			boolToInt(def.Silent),
			int64(def.SnoozeDuration),
			boolToInt(def.DeleteAfterUse),
			formatTime(def.UpdatedAt),
			def.ID,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// GetDefinition retrieves a definition by id.
func (s *Storage) GetDefinition(ctx context.Context, id string) (alarm.Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+definitionColumns+`
		FROM alarm_definitions WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alarm.Definition{}, persistence.ErrNotFound
	}
	return def, err
}

// ListDefinitions returns all definitions ordered by creation time.
func (s *Storage) ListDefinitions(ctx context.Context) ([]alarm.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+definitionColumns+`
		FROM alarm_definitions ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var defs []alarm.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// DeleteDefinition removes a definition; the schema cascades to its instances.
func (s *Storage) DeleteDefinition(ctx context.Context, id string) error {
	return retryOp(defaultRetryConfig, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM alarm_definitions WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (alarm.Definition, error) {
	var (
		def            alarm.Definition
		recurrence     int
		enabled        int
		vibrate        int
		silent         int
		snoozeNanos    int64
		deleteAfterUse int
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(
		&def.ID, &def.Hour, &def.Minute, &recurrence, &enabled, &def.Label,
		&vibrate, &def.AlertRef, &silent, &snoozeNanos, &deleteAfterUse,
		&createdAt, &updatedAt,
	); err != nil {
		return alarm.Definition{}, err
	}

	set, err := alarm.WeekdaySetFromBits(uint8(recurrence))
	if err != nil {
		return alarm.Definition{}, err
	}
	def.Recurrence = set
	def.Enabled = enabled != 0
	def.Vibrate = vibrate != 0
	def.Silent = silent != 0
	def.SnoozeDuration = time.Duration(snoozeNanos)
	def.DeleteAfterUse = deleteAfterUse != 0

	if def.CreatedAt, err = parseTime(createdAt); err != nil {
		return alarm.Definition{}, err
	}
	if def.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return alarm.Definition{}, err
	}
	return def, nil
}
