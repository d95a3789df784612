package application

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/scheduler"
)

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.weekdayAlarm(t)
	h.oneShotAlarm(t, false)

	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	instancesAfterFirst, _ := h.store.ListInstances(context.Background())
	scheduleAfterFirst := h.wake.Snapshot()
	h.notifier.Reset()

	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	instancesAfterSecond, _ := h.store.ListInstances(context.Background())
	if !reflect.DeepEqual(instancesAfterFirst, instancesAfterSecond) {
		t.Fatalf("second pass changed instances:\nfirst:  %+v\nsecond: %+v", instancesAfterFirst, instancesAfterSecond)
	}
	if got := h.wake.Snapshot(); !reflect.DeepEqual(scheduleAfterFirst, got) {
		t.Fatalf("second pass changed registrations:\nfirst:  %v\nsecond: %v", scheduleAfterFirst, got)
	}
	if events := h.notifier.Events(); len(events) != 0 {
		t.Fatalf("second pass emitted signals: %v", events)
	}
}

func TestReconcileCreatesMissingInstances(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	// A definition written behind the service's back, as an external editor
	// sharing the store would.
	def := alarm.Definition{
		ID:         "ext-1",
		Hour:       9,
		Minute:     0,
		Recurrence: alarm.NewWeekdaySet(time.Tuesday),
		Enabled:    true,
		CreatedAt:  h.clock.Now(),
		UpdatedAt:  h.clock.Now(),
	}
	if err := h.store.CreateDefinition(context.Background(), def); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}

	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	inst := h.activeInstance(t, def.ID)
	want := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)
	if !inst.TriggerAt.Equal(want) {
		t.Fatalf("expected Tuesday 09:00, got %v", inst.TriggerAt)
	}
	if _, ok := h.wake.TokenFor(inst.ID); !ok {
		t.Fatal("expected wake registration for the new instance")
	}
}

func TestReconcileMarksSleptThroughInstanceMissed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	def := h.weekdayAlarm(t)
	inst := h.activeInstance(t, def.ID)

	// Power off before the trigger, power on the next day: the callback never
	// fired and the trigger instant has passed.
	h.wake.Cancel(scheduler.Token{InstanceID: inst.ID, Generation: inst.Generation})
	h.clock.Set(time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC))

	if err := h.service.OnBoot(context.Background()); err != nil {
		t.Fatalf("OnBoot: %v", err)
	}

	next := h.activeInstance(t, def.ID)
	if next.ID == inst.ID {
		t.Fatal("slept-through instance must be replaced")
	}
	// Tuesday noon, next Mon/Wed/Fri occurrence is Wednesday 07:00.
	want := time.Date(2025, time.March, 5, 7, 0, 0, 0, time.UTC)
	if !next.TriggerAt.Equal(want) {
		t.Fatalf("expected Wednesday 07:00, got %v", next.TriggerAt)
	}

	sawMissed := false
	for _, event := range h.notifier.Events() {
		if event == "state:"+inst.ID+":missed" {
			sawMissed = true
		}
	}
	if !sawMissed {
		t.Fatalf("expected missed signal, got %v", h.notifier.Events())
	}
}

func TestReconcileDisablesSleptThroughOneShot(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	def := h.oneShotAlarm(t, false)

	h.clock.Set(time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC))
	if err := h.service.OnTimeDiscontinuity(context.Background()); err != nil {
		t.Fatalf("OnTimeDiscontinuity: %v", err)
	}

	stored, err := h.store.GetDefinition(context.Background(), def.ID)
	if err != nil {
		t.Fatalf("GetDefinition: %v", err)
	}
	if stored.Enabled {
		t.Fatal("slept-through one-shot must be auto-disabled")
	}
	if got := countNonTerminal(t, h.store, def.ID); got != 0 {
		t.Fatalf("expected no live instance, got %d", got)
	}
}

func TestReconcileLeavesAlertingInstancesAlone(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	def := h.weekdayAlarm(t)
	inst := h.fireUntil(t, def.ID, alarm.StateFiring)

	// The firing instance's trigger is in the past, but it is being presented
	// to the user; reconciliation must not retire it.
	h.clock.Advance(time.Minute)
	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	after := h.activeInstance(t, def.ID)
	if after.ID != inst.ID || after.State != alarm.StateFiring {
		t.Fatalf("firing instance disturbed: %+v", after)
	}
}

func TestReconcileDropsInstancesOfDisabledDefinitions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	def := h.weekdayAlarm(t)
	inst := h.activeInstance(t, def.ID)

	// Disable behind the service's back, leaving the instance row lingering.
	stored, _ := h.store.GetDefinition(context.Background(), def.ID)
	stored.Enabled = false
	if err := h.store.UpdateDefinition(context.Background(), stored); err != nil {
		t.Fatalf("UpdateDefinition: %v", err)
	}

	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := countNonTerminal(t, h.store, def.ID); got != 0 {
		t.Fatalf("expected lingering instance dropped, got %d", got)
	}
	if _, ok := h.wake.TokenFor(inst.ID); ok {
		t.Fatal("expected wake registration cancelled")
	}
}

func TestReconcileDropsOrphanedInstances(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	orphan := alarm.Instance{
		ID:           "orphan-1",
		DefinitionID: "gone",
		TriggerAt:    h.clock.Now().Add(time.Hour),
		State:        alarm.StateScheduled,
		Generation:   3,
	}
	if err := h.store.PutInstance(context.Background(), orphan); err != nil {
		t.Fatalf("PutInstance: %v", err)
	}

	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	instances, _ := h.store.ListInstances(context.Background())
	if len(instances) != 0 {
		t.Fatalf("expected orphan dropped, got %+v", instances)
	}
}

func TestReconcileCollapsesDuplicateInstances(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	def := h.weekdayAlarm(t)
	inst := h.activeInstance(t, def.ID)

	duplicate := inst
	duplicate.ID = "dup-1"
	duplicate.TriggerAt = inst.TriggerAt.Add(48 * time.Hour)
	if err := h.store.PutInstance(context.Background(), duplicate); err != nil {
		t.Fatalf("PutInstance: %v", err)
	}

	if err := h.service.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := countNonTerminal(t, h.store, def.ID); got != 1 {
		t.Fatalf("expected duplicates collapsed to one, got %d", got)
	}
	survivor := h.activeInstance(t, def.ID)
	if survivor.ID != inst.ID {
		t.Fatalf("expected earliest-trigger instance kept, got %s", survivor.ID)
	}
}
