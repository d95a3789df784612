package application

import (
	"time"

	"github.com/example/alarmd/internal/alarm"
)

// DefinitionInput captures caller provided alarm definition fields.
type DefinitionInput struct {
	Hour           int
	Minute         int
	Weekdays       []time.Weekday
	Enabled        bool
	Label          string
	Vibrate        bool
	AlertRef       string
	Silent         bool
	SnoozeDuration time.Duration
	DeleteAfterUse bool
}

// Policy holds the lead times and timeouts that separate the visible
// lifecycle states. These are deployment configuration, not fixed behavior.
type Policy struct {
	// UpcomingLead is how long before the trigger an instance becomes a
	// low priority, user visible upcoming alarm.
	UpcomingLead time.Duration
	// ImminentLead is how long before the trigger an instance is promoted
	// to high priority.
	ImminentLead time.Duration
	// DefaultSnooze applies when a definition carries no snooze duration.
	DefaultSnooze time.Duration
	// MissedTimeout is how long an unacknowledged alert may ring before the
	// external presentation timer reports it missed. The core records the
	// value for collaborators; it never blocks on it.
	MissedTimeout time.Duration
}

// DefaultPolicy mirrors common alarm clock lead times.
func DefaultPolicy() Policy {
	return Policy{
		UpcomingLead:  2 * time.Hour,
		ImminentLead:  30 * time.Minute,
		DefaultSnooze: 10 * time.Minute,
		MissedTimeout: 10 * time.Minute,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.UpcomingLead <= 0 {
		p.UpcomingLead = def.UpcomingLead
	}
	if p.ImminentLead <= 0 {
		p.ImminentLead = def.ImminentLead
	}
	if p.ImminentLead > p.UpcomingLead {
		p.ImminentLead = p.UpcomingLead
	}
	if p.DefaultSnooze <= 0 {
		p.DefaultSnooze = def.DefaultSnooze
	}
	if p.MissedTimeout <= 0 {
		p.MissedTimeout = def.MissedTimeout
	}
	return p
}

func validateDefinitionInput(input DefinitionInput, vErr *ValidationError) {
	if input.Hour < 0 || input.Hour > 23 {
		vErr.add("hour", "hour must be between 0 and 23")
	}
	if input.Minute < 0 || input.Minute > 59 {
		vErr.add("minute", "minute must be between 0 and 59")
	}
	if input.SnoozeDuration < 0 {
		vErr.add("snooze_duration", "snooze duration must not be negative")
	}
	seen := make(map[time.Weekday]struct{}, len(input.Weekdays))
	for _, day := range input.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			vErr.add("weekdays", "unknown weekday")
			continue
		}
		if _, ok := seen[day]; ok {
			vErr.add("weekdays", "duplicate weekday")
			continue
		}
		seen[day] = struct{}{}
	}
}

func validateDefinition(def alarm.Definition, vErr *ValidationError) {
	if def.Hour < 0 || def.Hour > 23 {
		vErr.add("hour", "hour must be between 0 and 23")
	}
	if def.Minute < 0 || def.Minute > 59 {
		vErr.add("minute", "minute must be between 0 and 59")
	}
	if def.Recurrence > alarm.MaxWeekdaySetBits {
		vErr.add("recurrence", "invalid weekday bits")
	}
}
