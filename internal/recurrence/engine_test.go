package recurrence

import (
	"testing"
	"time"

	"github.com/example/alarmd/internal/alarm"
)

// Monday 2025-03-03.
var monday = time.Date(2025, time.March, 3, 6, 0, 0, 0, time.UTC)

func def(hour, minute int, days ...time.Weekday) alarm.Definition {
	return alarm.Definition{
		ID:         "def-1",
		Hour:       hour,
		Minute:     minute,
		Recurrence: alarm.NewWeekdaySet(days...),
		Enabled:    true,
	}
}

func TestNextTriggerSameDayFutureMatch(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	got := engine.NextTrigger(def(7, 0, time.Monday, time.Wednesday, time.Friday), monday)

	want := time.Date(2025, time.March, 3, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected Monday 07:00, got %v", got)
	}
}

func TestNextTriggerWraparound(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC) // Monday 08:00
	got := engine.NextTrigger(def(7, 0, time.Monday), now)

	want := time.Date(2025, time.March, 10, 7, 0, 0, 0, time.UTC) // next Monday
	if !got.Equal(want) {
		t.Fatalf("expected the following Monday 07:00, got %v", got)
	}
}

func TestNextTriggerOneShotRollsToTomorrow(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	now := time.Date(2025, time.March, 3, 7, 0, 0, 0, time.UTC)
	got := engine.NextTrigger(def(7, 0), now)

	want := time.Date(2025, time.March, 4, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected Tuesday 07:00, got %v", got)
	}
}

func TestNextTriggerOneShotLaterToday(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	got := engine.NextTrigger(def(22, 30), monday)

	want := time.Date(2025, time.March, 3, 22, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected Monday 22:30, got %v", got)
	}
}

func TestNextTriggerExactMinuteCountsAsElapsed(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	now := time.Date(2025, time.March, 3, 7, 0, 0, 0, time.UTC) // exactly 07:00 Monday
	got := engine.NextTrigger(def(7, 0, time.Monday, time.Thursday), now)

	want := time.Date(2025, time.March, 6, 7, 0, 0, 0, time.UTC) // Thursday
	if !got.Equal(want) {
		t.Fatalf("expected Thursday 07:00, got %v", got)
	}
}

func TestNextTriggerAlwaysStrictlyFuture(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)

	sets := [][]time.Weekday{
		nil,
		{time.Monday},
		{time.Sunday},
		{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday},
		{time.Tuesday, time.Saturday},
	}

	for _, days := range sets {
		for hour := 0; hour < 24; hour += 5 {
			for minuteOffset := -90; minuteOffset <= 90; minuteOffset += 30 {
				d := def(hour, 30, days...)
				now := time.Date(2025, time.March, 3, hour, 30, 0, 0, time.UTC).Add(time.Duration(minuteOffset) * time.Minute)
				got := engine.NextTrigger(d, now)
				if !got.After(now) {
					t.Fatalf("trigger %v not after now %v (days=%v hour=%d)", got, now, days, hour)
				}
				if got.Hour() != hour || got.Minute() != 30 {
					t.Fatalf("trigger %v lost wall-clock time (want %02d:30)", got, hour)
				}
			}
		}
	}
}

func TestNextTriggerSpringForwardKeepsWallClock(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	engine := NewEngine(loc)

	// 2025-03-08 is the Saturday before the US spring-forward transition.
	now := time.Date(2025, time.March, 8, 9, 0, 0, 0, loc)
	got := engine.NextTrigger(def(8, 0, time.Sunday), now)

	// Sunday 2025-03-09 08:00 EDT: the calendar day is 23 hours long, but the
	// wall-clock time must hold.
	if got.Hour() != 8 || got.Minute() != 0 {
		t.Fatalf("expected 08:00 wall clock, got %v", got)
	}
	if got.Day() != 9 || got.Month() != time.March {
		t.Fatalf("expected March 9, got %v", got)
	}
}

func TestNextTriggerUsesEngineLocation(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	engine := NewEngine(tokyo)

	// Monday 23:00 UTC is already Tuesday 08:00 in JST, so a Tuesday 09:00
	// alarm lands the same JST day.
	now := time.Date(2025, time.March, 3, 23, 0, 0, 0, time.UTC)
	got := engine.NextTrigger(def(9, 0, time.Tuesday), now)

	want := time.Date(2025, time.March, 4, 9, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Fatalf("expected Tuesday 09:00 JST, got %v", got)
	}
}
