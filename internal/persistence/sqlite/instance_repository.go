package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/persistence"
)

const instanceColumns = `id, definition_id, trigger_at, state, label, vibrate, alert_ref, silent, snoozed_until, generation, created_at, updated_at`

// PutInstance upserts an instance record. Creation and every state
// transition share this single write path.
func (s *Storage) PutInstance(ctx context.Context, inst alarm.Instance) error {
	if inst.ID == "" || inst.DefinitionID == "" {
		return persistence.ErrConstraintViolation
	}

	var snoozedUntil sql.NullString
	if inst.SnoozedUntil != nil {
		snoozedUntil.String = formatTime(*inst.SnoozedUntil)
		snoozedUntil.Valid = true
	}

	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO alarm_instances (`+instanceColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				trigger_at = excluded.trigger_at,
				state = excluded.state,
				label = excluded.label,
				vibrate = excluded.vibrate,
				alert_ref = excluded.alert_ref,
				silent = excluded.silent,
				snoozed_until = excluded.snoozed_until,
				generation = excluded.generation,
				updated_at = excluded.updated_at`,
			inst.ID,
			inst.DefinitionID,
			formatTime(inst.TriggerAt),
			int(inst.State),
			inst.Label,
			boolToInt(inst.Vibrate),
			inst.AlertRef,
			boolToInt(inst.Silent),
			snoozedUntil,
			inst.Generation,
			formatTime(inst.CreatedAt),
			formatTime(inst.UpdatedAt),
		)
		return mapError(err)
	})
}

// GetInstance retrieves an instance by id.
func (s *Storage) GetInstance(ctx context.Context, id string) (alarm.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM alarm_instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alarm.Instance{}, persistence.ErrNotFound
	}
	return inst, err
}

// ActiveInstanceForDefinition returns the definition's non-terminal instance.
func (s *Storage) ActiveInstanceForDefinition(ctx context.Context, definitionID string) (alarm.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM alarm_instances
		WHERE definition_id = ? AND state NOT IN (?, ?)
		ORDER BY trigger_at, id
		LIMIT 1`,
		definitionID, int(alarm.StateDismissed), int(alarm.StateMissed))
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alarm.Instance{}, persistence.ErrNotFound
	}
	return inst, err
}

// ListInstances returns all instance records ordered by trigger time.
func (s *Storage) ListInstances(ctx context.Context) ([]alarm.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM alarm_instances ORDER BY trigger_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var instances []alarm.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// DeleteInstance removes a single instance record.
func (s *Storage) DeleteInstance(ctx context.Context, id string) error {
	return retryOp(defaultRetryConfig, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM alarm_instances WHERE id = ?`, id)
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

// DeleteInstancesForDefinition removes every instance referencing a definition.
func (s *Storage) DeleteInstancesForDefinition(ctx context.Context, definitionID string) error {
	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM alarm_instances WHERE definition_id = ?`, definitionID)
		return mapError(err)
	})
}

func scanInstance(row rowScanner) (alarm.Instance, error) {
	var (
		inst         alarm.Instance
		triggerAt    string
		state        int
		vibrate      int
		silent       int
		snoozedUntil sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := row.Scan(
		&inst.ID, &inst.DefinitionID, &triggerAt, &state, &inst.Label,
		&vibrate, &inst.AlertRef, &silent, &snoozedUntil, &inst.Generation,
		&createdAt, &updatedAt,
	); err != nil {
		return alarm.Instance{}, err
	}

	inst.State = alarm.State(state)
	inst.Vibrate = vibrate != 0
	inst.Silent = silent != 0

	var err error
	if inst.TriggerAt, err = parseTime(triggerAt); err != nil {
		return alarm.Instance{}, err
	}
	if snoozedUntil.Valid {
		t, err := parseTime(snoozedUntil.String)
		if err != nil {
			return alarm.Instance{}, err
		}
		inst.SnoozedUntil = &t
	}
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return alarm.Instance{}, err
	}
	if inst.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return alarm.Instance{}, err
	}
	return inst, nil
}
