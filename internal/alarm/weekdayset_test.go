package alarm

import (
	"testing"
	"time"
)

func TestWeekdaySetBits(t *testing.T) {
	t.Parallel()

	set := NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)
	if got := set.Bits(); got != 0b0010101 {
		t.Fatalf("expected bits 0b0010101, got %#b", got)
	}

	if !set.Contains(time.Monday) || !set.Contains(time.Wednesday) || !set.Contains(time.Friday) {
		t.Fatalf("expected Mon/Wed/Fri to be contained in %s", set)
	}
	if set.Contains(time.Sunday) {
		t.Fatalf("did not expect Sunday in %s", set)
	}

	if got := NewWeekdaySet(time.Sunday).Bits(); got != 0b1000000 {
		t.Fatalf("expected Sunday in bit 6, got %#b", got)
	}
}

func TestWeekdaySetFromBits(t *testing.T) {
	t.Parallel()

	set, err := WeekdaySetFromBits(0b1111111)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Weekdays()) != 7 {
		t.Fatalf("expected all seven days, got %v", set.Weekdays())
	}

	if _, err := WeekdaySetFromBits(0x80); err == nil {
		t.Fatal("expected error for out-of-range bits")
	}
}

func TestWeekdaySetWith(t *testing.T) {
	t.Parallel()

	var set WeekdaySet
	set = set.With(time.Tuesday, true)
	if !set.Contains(time.Tuesday) {
		t.Fatal("expected Tuesday after With(true)")
	}

	// With is a value operation; the receiver is unchanged.
	cleared := set.With(time.Tuesday, false)
	if cleared.IsRepeating() {
		t.Fatalf("expected empty set, got %s", cleared)
	}
	if !set.Contains(time.Tuesday) {
		t.Fatal("receiver mutated by With")
	}
}

func TestWeekdaySetDaysUntilNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		set          WeekdaySet
		from         time.Weekday
		allowSameDay bool
		want         int
	}{
		{"same day allowed", NewWeekdaySet(time.Monday), time.Monday, true, 0},
		{"same day excluded wraps a full week", NewWeekdaySet(time.Monday), time.Monday, false, 7},
		{"next match later this week", NewWeekdaySet(time.Monday, time.Wednesday, time.Friday), time.Tuesday, true, 1},
		{"wrap across weekend", NewWeekdaySet(time.Monday), time.Saturday, true, 2},
		{"sunday to monday", NewWeekdaySet(time.Monday), time.Sunday, false, 1},
		{"empty set", WeekdaySet(0), time.Monday, true, -1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.set.DaysUntilNext(tc.from, tc.allowSameDay); got != tc.want {
				t.Fatalf("DaysUntilNext(%v, %v) = %d, want %d", tc.from, tc.allowSameDay, got, tc.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	for _, state := range []State{StateScheduled, StateLowPriority, StateHighPriority, StateFiring, StateSnoozed} {
		if state.Terminal() {
			t.Fatalf("%s should not be terminal", state)
		}
	}
	for _, state := range []State{StateDismissed, StateMissed} {
		if !state.Terminal() {
			t.Fatalf("%s should be terminal", state)
		}
	}
}

func TestInstanceNextAlertAt(t *testing.T) {
	t.Parallel()

	trigger := time.Date(2025, time.March, 3, 7, 0, 0, 0, time.UTC)
	inst := Instance{TriggerAt: trigger, State: StateScheduled}
	if !inst.NextAlertAt().Equal(trigger) {
		t.Fatalf("expected trigger instant, got %v", inst.NextAlertAt())
	}

	until := trigger.Add(10 * time.Minute)
	inst.State = StateSnoozed
	inst.SnoozedUntil = &until
	if !inst.NextAlertAt().Equal(until) {
		t.Fatalf("expected snooze deadline, got %v", inst.NextAlertAt())
	}
}
