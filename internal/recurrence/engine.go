package recurrence

import (
	"time"

	"github.com/example/alarmd/internal/alarm"
)

// Engine computes the next absolute trigger instant for alarm definitions.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates wall-clock times in the
// provided location. If loc is nil, the process local zone is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

// Location returns the zone the engine evaluates wall-clock times in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.Local
	}
	return e.location
}

// NextTrigger returns the first instant strictly after now at which the
// definition must fire.
//
// The candidate is built on the same calendar day as now at the definition's
// hour and minute. A candidate equal to now counts as already elapsed, so the
// result is always strictly in the future. Day offsets are applied with
// calendar-day arithmetic: crossing a daylight-saving transition shifts the
// elapsed duration, never the wall-clock time.
func (e *Engine) NextTrigger(def alarm.Definition, now time.Time) time.Time {
	loc := e.Location()
	now = now.In(loc)

	candidate := time.Date(now.Year(), now.Month(), now.Day(), def.Hour, def.Minute, 0, 0, loc)

	if !def.Recurrence.IsRepeating() {
		if candidate.After(now) {
			return candidate
		}
		// Already elapsed today; a one-shot always lands tomorrow.
		return candidate.AddDate(0, 0, 1)
	}

	days := def.Recurrence.DaysUntilNext(now.Weekday(), candidate.After(now))
	if days < 0 {
		// Unreachable: IsRepeating guarantees a match within 7 days.
		panic("recurrence: non-empty weekday set yielded no match")
	}
	if days == 0 {
		return candidate
	}
	return candidate.AddDate(0, 0, days)
}
