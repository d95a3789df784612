package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/notify"
	"github.com/example/alarmd/internal/persistence"
	"github.com/example/alarmd/internal/recurrence"
	"github.com/example/alarmd/internal/scheduler"
)

// AlarmService owns alarm definitions and drives each definition's single
// live instance through its lifecycle. All mutations are serialized through
// one lock, so at most one transition per instance is ever in flight, and
// every registered wake callback carries the generation current at arming
// time. A callback whose generation no longer matches the persisted record is
// stale and discarded.
type AlarmService struct {
	store       persistence.Store
	wake        scheduler.WakeScheduler
	notifier    notify.Notifier
	engine      *recurrence.Engine
	policy      Policy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	mu sync.Mutex
}

// NewAlarmService wires dependencies for alarm operations.
func NewAlarmService(store persistence.Store, wake scheduler.WakeScheduler, notifier notify.Notifier, engine *recurrence.Engine, policy Policy, idGenerator func() string, now func() time.Time) *AlarmService {
	return NewAlarmServiceWithLogger(store, wake, notifier, engine, policy, idGenerator, now, nil)
}

// NewAlarmServiceWithLogger wires dependencies and attaches a base logger.
func NewAlarmServiceWithLogger(store persistence.Store, wake scheduler.WakeScheduler, notifier notify.Notifier, engine *recurrence.Engine, policy Policy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AlarmService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &AlarmService{
		store:       store,
		wake:        wake,
		notifier:    notifier,
		engine:      engine,
		policy:      policy.normalized(),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Policy returns the lead time configuration the service runs with.
func (s *AlarmService) Policy() Policy {
	return s.policy
}

// CreateDefinition validates and persists a new alarm definition and, when
// enabled, arms its first instance.
func (s *AlarmService) CreateDefinition(ctx context.Context, input DefinitionInput) (alarm.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vErr := &ValidationError{}
	validateDefinitionInput(input, vErr)
	if vErr.HasErrors() {
		return alarm.Definition{}, vErr
	}

	now := s.now()
	def := alarm.Definition{
		ID:             s.idGenerator(),
		Hour:           input.Hour,
		Minute:         input.Minute,
		Recurrence:     alarm.NewWeekdaySet(input.Weekdays...),
		Enabled:        input.Enabled,
		Label:          input.Label,
		Vibrate:        input.Vibrate,
		AlertRef:       input.AlertRef,
		Silent:         input.Silent,
		SnoozeDuration: input.SnoozeDuration,
		DeleteAfterUse: input.DeleteAfterUse,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateDefinition(ctx, def); err != nil {
		return alarm.Definition{}, mapRepoError(err)
	}

	if err := s.resyncLocked(ctx, def); err != nil {
		return alarm.Definition{}, err
	}

	serviceLogger(ctx, s.logger, "create_definition", "definition_id", def.ID).
		InfoContext(ctx, "alarm definition created", "recurrence", def.Recurrence.String(), "enabled", def.Enabled)
	return def, nil
}

// UpdateDefinition validates and persists edits to an existing definition.
// Any live instance is replaced so the next occurrence reflects the edit.
func (s *AlarmService) UpdateDefinition(ctx context.Context, definitionID string, input DefinitionInput) (alarm.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return alarm.Definition{}, mapRepoError(err)
	}

	vErr := &ValidationError{}
	validateDefinitionInput(input, vErr)
	if vErr.HasErrors() {
		return alarm.Definition{}, vErr
	}

	updated := existing
	updated.Hour = input.Hour
	updated.Minute = input.Minute
	updated.Recurrence = alarm.NewWeekdaySet(input.Weekdays...)
	updated.Enabled = input.Enabled
	updated.Label = input.Label
	updated.Vibrate = input.Vibrate
	updated.AlertRef = input.AlertRef
	updated.Silent = input.Silent
	updated.SnoozeDuration = input.SnoozeDuration
	updated.DeleteAfterUse = input.DeleteAfterUse
	updated.UpdatedAt = s.now()

	if err := s.store.UpdateDefinition(ctx, updated); err != nil {
		return alarm.Definition{}, mapRepoError(err)
	}

	if err := s.resyncLocked(ctx, updated); err != nil {
		return alarm.Definition{}, err
	}

	return updated, nil
}

// SetDefinitionEnabled flips the enabled flag, creating or retiring the
// definition's live instance accordingly.
func (s *AlarmService) SetDefinitionEnabled(ctx context.Context, definitionID string, enabled bool) (alarm.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, err := s.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return alarm.Definition{}, mapRepoError(err)
	}

	if def.Enabled == enabled {
		return def, nil
	}

	def.Enabled = enabled
	def.UpdatedAt = s.now()
	if err := s.store.UpdateDefinition(ctx, def); err != nil {
		return alarm.Definition{}, mapRepoError(err)
	}

	if err := s.resyncLocked(ctx, def); err != nil {
		return alarm.Definition{}, err
	}

	return def, nil
}

// DeleteDefinition removes the definition and cascades to its instances,
// cancelling any pending wake callback in the same operation.
func (s *AlarmService) DeleteDefinition(ctx context.Context, definitionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetDefinition(ctx, definitionID); err != nil {
		return mapRepoError(err)
	}

	if err := s.retireInstancesLocked(ctx, definitionID); err != nil {
		return err
	}
	if err := s.store.DeleteDefinition(ctx, definitionID); err != nil {
		return mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "delete_definition", "definition_id", definitionID).
		InfoContext(ctx, "alarm definition deleted")
	return nil
}

// GetDefinition returns a single definition.
func (s *AlarmService) GetDefinition(ctx context.Context, definitionID string) (alarm.Definition, error) {
	def, err := s.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return alarm.Definition{}, mapRepoError(err)
	}
	return def, nil
}

// ListDefinitions returns every stored definition.
func (s *AlarmService) ListDefinitions(ctx context.Context) ([]alarm.Definition, error) {
	defs, err := s.store.ListDefinitions(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return defs, nil
}

// OnDefinitionChanged is the entry point invoked after an external editor
// created, updated, enabled, disabled or deleted a definition. It re-derives
// the definition's instance from the store's current truth.
func (s *AlarmService) OnDefinitionChanged(ctx context.Context, definitionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, err := s.store.GetDefinition(ctx, definitionID)
	if errors.Is(err, persistence.ErrNotFound) {
		// Deleted definitions cascade to their instances.
		return s.retireInstancesLocked(ctx, definitionID)
	}
	if err != nil {
		return mapRepoError(err)
	}

	vErr := &ValidationError{}
	validateDefinition(def, vErr)
	if vErr.HasErrors() {
		return vErr
	}

	return s.resyncLocked(ctx, def)
}

// OnWakeCallback is the entry point invoked by the wake scheduler. Stale
// tokens, identified by a missing instance or a generation mismatch, are
// logged and discarded.
func (s *AlarmService) OnWakeCallback(ctx context.Context, token scheduler.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := serviceLogger(ctx, s.logger, "wake_callback", "token", token.String())

	inst, err := s.store.GetInstance(ctx, token.InstanceID)
	if errors.Is(err, persistence.ErrNotFound) {
		logger.DebugContext(ctx, "stale wake callback for unknown instance")
		return nil
	}
	if err != nil {
		return mapRepoError(err)
	}
	if inst.Generation != token.Generation {
		logger.DebugContext(ctx, "stale wake callback discarded", "current_generation", inst.Generation)
		return nil
	}

	now := s.now()
	switch inst.State {
	case alarm.StateScheduled, alarm.StateLowPriority, alarm.StateHighPriority:
		target := s.phaseFor(inst, now)
		if target == inst.State {
			// Delivered before the boundary; keep the state and re-arm.
			s.armLocked(ctx, inst)
			return nil
		}
		return s.advanceLocked(ctx, inst, target)
	case alarm.StateSnoozed:
		return s.advanceLocked(ctx, inst, alarm.StateFiring)
	default:
		logger.DebugContext(ctx, "wake callback ignored", "state", inst.State.String())
		return nil
	}
}

// Snooze postpones a firing instance by its definition's snooze duration.
func (s *AlarmService) Snooze(ctx context.Context, instanceID string) (alarm.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		return alarm.Instance{}, mapRepoError(err)
	}
	if inst.State != alarm.StateFiring {
		return alarm.Instance{}, ErrInvalidState
	}

	duration := s.policy.DefaultSnooze
	if def, err := s.store.GetDefinition(ctx, inst.DefinitionID); err == nil && def.SnoozeDuration > 0 {
		duration = def.SnoozeDuration
	}

	s.wake.Cancel(scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation})

	now := s.now()
	until := now.Add(duration)
	inst.Generation++
	inst.State = alarm.StateSnoozed
	inst.SnoozedUntil = &until
	inst.UpdatedAt = now

	if err := s.store.PutInstance(ctx, inst); err != nil {
		return alarm.Instance{}, mapRepoError(err)
	}
	s.armLocked(ctx, inst)
	s.notifier.AlertStopped(ctx, inst)
	s.notifier.InstanceStateChanged(ctx, inst)

	serviceLogger(ctx, s.logger, "snooze", "instance_id", inst.ID).
		InfoContext(ctx, "alarm snoozed", "until", until)
	return inst, nil
}

// Dismiss acknowledges a firing or snoozed instance. Recurring definitions
// immediately receive a fresh scheduled instance; one-shots are disabled.
func (s *AlarmService) Dismiss(ctx context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		return mapRepoError(err)
	}
	if inst.State != alarm.StateFiring && inst.State != alarm.StateSnoozed {
		return ErrInvalidState
	}

	return s.applyTerminalLocked(ctx, inst, alarm.StateDismissed)
}

// OnAlertTimeout is the entry point for the external presentation timer
// reporting that a firing instance rang unacknowledged past the missed
// timeout. The token guards against the alert having been handled already.
func (s *AlarmService) OnAlertTimeout(ctx context.Context, token scheduler.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := serviceLogger(ctx, s.logger, "alert_timeout", "token", token.String())

	inst, err := s.store.GetInstance(ctx, token.InstanceID)
	if errors.Is(err, persistence.ErrNotFound) {
		logger.DebugContext(ctx, "timeout for unknown instance discarded")
		return nil
	}
	if err != nil {
		return mapRepoError(err)
	}
	if inst.Generation != token.Generation || inst.State != alarm.StateFiring {
		logger.DebugContext(ctx, "stale timeout discarded", "state", inst.State.String())
		return nil
	}

	return s.applyTerminalLocked(ctx, inst, alarm.StateMissed)
}

// NextFiring returns the live instance that will next demand attention, if
// any exists.
func (s *AlarmService) NextFiring(ctx context.Context) (alarm.Instance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instances, err := s.store.ListInstances(ctx)
	if err != nil {
		return alarm.Instance{}, false, mapRepoError(err)
	}

	var best alarm.Instance
	found := false
	for _, inst := range instances {
		if inst.State.Terminal() {
			continue
		}
		if !found || inst.NextAlertAt().Before(best.NextAlertAt()) ||
			(inst.NextAlertAt().Equal(best.NextAlertAt()) && inst.ID < best.ID) {
			best = inst
			found = true
		}
	}
	return best, found, nil
}

// --- internal transitions ---

// resyncLocked replaces the definition's live instance with one derived from
// the definition's current state, or retires it when the definition is
// disabled.
func (s *AlarmService) resyncLocked(ctx context.Context, def alarm.Definition) error {
	if err := s.retireInstancesLocked(ctx, def.ID); err != nil {
		return err
	}
	if !def.Enabled {
		return nil
	}
	_, err := s.createInstanceLocked(ctx, def)
	return err
}

// retireInstancesLocked cancels and deletes every instance of a definition.
func (s *AlarmService) retireInstancesLocked(ctx context.Context, definitionID string) error {
	instances, err := s.store.ListInstances(ctx)
	if err != nil {
		return mapRepoError(err)
	}
	for _, inst := range instances {
		if inst.DefinitionID != definitionID {
			continue
		}
		s.wake.Cancel(scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation})
		if err := s.store.DeleteInstance(ctx, inst.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return mapRepoError(err)
		}
	}
	return nil
}

// createInstanceLocked computes the next trigger for an enabled definition and
// persists a fresh scheduled instance, copying the presentation fields.
func (s *AlarmService) createInstanceLocked(ctx context.Context, def alarm.Definition) (alarm.Instance, error) {
	now := s.now()
	inst := alarm.Instance{
		ID:           s.idGenerator(),
		DefinitionID: def.ID,
		TriggerAt:    s.engine.NextTrigger(def, now),
		State:        alarm.StateScheduled,
		Label:        def.Label,
		Vibrate:      def.Vibrate,
		AlertRef:     def.AlertRef,
		Silent:       def.Silent,
		Generation:   1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.PutInstance(ctx, inst); err != nil {
		return alarm.Instance{}, mapRepoError(err)
	}
	s.armLocked(ctx, inst)
	s.notifier.InstanceStateChanged(ctx, inst)

	serviceLogger(ctx, s.logger, "create_instance", "definition_id", def.ID).
		InfoContext(ctx, "alarm instance scheduled", "instance_id", inst.ID, "trigger_at", inst.TriggerAt)
	return inst, nil
}

// advanceLocked applies a non-terminal transition: cancel the superseded
// callback, persist the new state under a fresh generation, then re-arm.
func (s *AlarmService) advanceLocked(ctx context.Context, inst alarm.Instance, target alarm.State) error {
	from := inst.State

	s.wake.Cancel(scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation})
	inst.Generation++
	inst.State = target
	if target == alarm.StateFiring {
		inst.SnoozedUntil = nil
	}
	inst.UpdatedAt = s.now()

	if err := s.store.PutInstance(ctx, inst); err != nil {
		// The old callback is already cancelled; the reconciliation pass
		// re-arms once the store recovers.
		return mapRepoError(err)
	}
	s.armLocked(ctx, inst)
	s.notifier.InstanceStateChanged(ctx, inst)
	if target == alarm.StateFiring {
		s.notifier.AlertStarted(ctx, inst)
	}

	serviceLogger(ctx, s.logger, "transition", "instance_id", inst.ID).
		InfoContext(ctx, "alarm instance transitioned", "from", from.String(), "to", target.String())
	return nil
}

// applyTerminalLocked retires an instance into a terminal state and performs
// the follow-up the definition demands: a fresh instance for recurring
// definitions, auto-disable or removal for one-shots.
func (s *AlarmService) applyTerminalLocked(ctx context.Context, inst alarm.Instance, terminal alarm.State) error {
	wasAlerting := inst.State == alarm.StateFiring || inst.State == alarm.StateSnoozed

	s.wake.Cancel(scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation})
	inst.Generation++
	inst.State = terminal
	inst.UpdatedAt = s.now()

	// Terminal instances are not retained: deleting the record is what makes
	// the terminal state durable, and the absence of a row is what the
	// reconciliation pass treats as "no live occurrence".
	if err := s.store.DeleteInstance(ctx, inst.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return mapRepoError(err)
	}
	s.notifier.InstanceStateChanged(ctx, inst)
	if wasAlerting {
		s.notifier.AlertStopped(ctx, inst)
	}

	serviceLogger(ctx, s.logger, "transition", "instance_id", inst.ID).
		InfoContext(ctx, "alarm instance retired", "state", terminal.String())

	def, err := s.store.GetDefinition(ctx, inst.DefinitionID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return mapRepoError(err)
	}

	if def.Recurrence.IsRepeating() {
		if !def.Enabled {
			return nil
		}
		_, err := s.createInstanceLocked(ctx, def)
		return err
	}

	// A completed one-shot never fires again.
	if def.DeleteAfterUse {
		if err := s.store.DeleteDefinition(ctx, def.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return mapRepoError(err)
		}
		return nil
	}
	if def.Enabled {
		def.Enabled = false
		def.UpdatedAt = s.now()
		if err := s.store.UpdateDefinition(ctx, def); err != nil {
			return mapRepoError(err)
		}
	}
	return nil
}

// armLocked registers the wake callback for the instance's next boundary.
// Registration failures are absorbed: the persisted state is correct and the
// reconciliation pass re-arms lost callbacks.
func (s *AlarmService) armLocked(ctx context.Context, inst alarm.Instance) {
	at, ok := s.wakeTimeFor(inst)
	if !ok {
		return
	}
	token := scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation}
	if err := s.wake.Schedule(at, token); err != nil {
		serviceLogger(ctx, s.logger, "arm", "instance_id", inst.ID).
			WarnContext(ctx, "wake registration failed; reconciliation will re-arm", "error", err)
	}
}

// wakeTimeFor returns the instant of the instance's next state boundary.
func (s *AlarmService) wakeTimeFor(inst alarm.Instance) (time.Time, bool) {
	switch inst.State {
	case alarm.StateScheduled:
		return inst.TriggerAt.Add(-s.policy.UpcomingLead), true
	case alarm.StateLowPriority:
		return inst.TriggerAt.Add(-s.policy.ImminentLead), true
	case alarm.StateHighPriority:
		return inst.TriggerAt, true
	case alarm.StateSnoozed:
		if inst.SnoozedUntil != nil {
			return *inst.SnoozedUntil, true
		}
		return inst.TriggerAt, true
	default:
		return time.Time{}, false
	}
}

// phaseFor maps the current time onto the pre-firing display phase. A late
// callback, for example after the process slept through a boundary, promotes
// the instance directly to the phase the wall clock demands.
func (s *AlarmService) phaseFor(inst alarm.Instance, now time.Time) alarm.State {
	switch {
	case !now.Before(inst.TriggerAt):
		return alarm.StateFiring
	case !now.Before(inst.TriggerAt.Add(-s.policy.ImminentLead)):
		return alarm.StateHighPriority
	case !now.Before(inst.TriggerAt.Add(-s.policy.UpcomingLead)):
		return alarm.StateLowPriority
	default:
		return alarm.StateScheduled
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) || errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("definition", "record violates storage constraints")
		return vErr
	}
	return err
}
