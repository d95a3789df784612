package application

import (
	"context"
	"errors"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/persistence"
	"github.com/example/alarmd/internal/scheduler"
)

// OnBoot is the entry point invoked once the process starts. Wake callbacks
// do not survive a restart, so everything is re-derived.
func (s *AlarmService) OnBoot(ctx context.Context) error {
	return s.Reconcile(ctx)
}

// OnTimeDiscontinuity is the entry point invoked after a manual clock change,
// a timezone change or any other discontinuous jump in the device's notion of
// time.
func (s *AlarmService) OnTimeDiscontinuity(ctx context.Context) error {
	return s.Reconcile(ctx)
}

// Reconcile re-derives every enabled definition's instance and re-arms its
// wake callback. The pass is idempotent: a second run with no intervening
// changes performs no state transitions.
//
// Per definition:
//   - no live instance: create one in the scheduled state
//   - live instance whose trigger passed without ever firing: the callback
//     was lost; apply the missed terminal transition
//   - live instance still valid: re-register the wake callback unconditionally
//
// Instances of disabled or deleted definitions are cancelled and deleted.
func (s *AlarmService) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := serviceLogger(ctx, s.logger, "reconcile")
	now := s.now()

	defs, err := s.store.ListDefinitions(ctx)
	if err != nil {
		return mapRepoError(err)
	}
	instances, err := s.store.ListInstances(ctx)
	if err != nil {
		return mapRepoError(err)
	}

	live := make(map[string][]alarm.Instance, len(instances))
	for _, inst := range instances {
		if inst.State.Terminal() {
			// Terminal rows are never retained by transitions; one found
			// here is leftover from an interrupted cleanup.
			s.dropInstanceLocked(ctx, inst)
			continue
		}
		live[inst.DefinitionID] = append(live[inst.DefinitionID], inst)
	}

	var errs []error
	known := make(map[string]struct{}, len(defs))

	for _, def := range defs {
		known[def.ID] = struct{}{}

		if !def.Enabled {
			for _, inst := range live[def.ID] {
				s.dropInstanceLocked(ctx, inst)
			}
			continue
		}

		insts := live[def.ID]
		if len(insts) == 0 {
			if _, err := s.createInstanceLocked(ctx, def); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		// Guard the single-live-instance invariant: keep the earliest, drop
		// the rest.
		inst := insts[0]
		for _, other := range insts[1:] {
			if other.TriggerAt.Before(inst.TriggerAt) {
				s.dropInstanceLocked(ctx, inst)
				inst = other
				continue
			}
			s.dropInstanceLocked(ctx, other)
		}

		if !inst.State.Terminal() && inst.State != alarm.StateFiring && inst.State != alarm.StateSnoozed && !inst.TriggerAt.After(now) {
			// The trigger passed without the instance ever firing: the wake
			// callback was lost across a reboot or discontinuity.
			logger.InfoContext(ctx, "past-due instance treated as missed", "instance_id", inst.ID, "trigger_at", inst.TriggerAt)
			if err := s.applyTerminalLocked(ctx, inst, alarm.StateMissed); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		// Still valid; re-arm unconditionally. Scheduling the same token
		// replaces any live registration, so repeated passes do not stack
		// callbacks.
		s.armLocked(ctx, inst)
	}

	for definitionID, insts := range live {
		if _, ok := known[definitionID]; ok {
			continue
		}
		for _, inst := range insts {
			s.dropInstanceLocked(ctx, inst)
		}
	}

	return errors.Join(errs...)
}

// dropInstanceLocked cancels an instance's wake callback and deletes its
// record, absorbing a concurrent disappearance.
func (s *AlarmService) dropInstanceLocked(ctx context.Context, inst alarm.Instance) {
	s.wake.Cancel(scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation})
	if err := s.store.DeleteInstance(ctx, inst.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		serviceLogger(ctx, s.logger, "reconcile", "instance_id", inst.ID).
			WarnContext(ctx, "failed to delete lingering instance", "error", err)
	}
}
