package alarm

import "time"

// Definition is the durable, user-edited description of a recurring or
// one-shot alarm. The scheduling core reads it from persistence and only
// writes back the Enabled flag when a one-shot fires to completion.
type Definition struct {
	ID             string
	Hour           int
	Minute         int
	Recurrence     WeekdaySet
	Enabled        bool
	Label          string
	Vibrate        bool
	AlertRef       string
	Silent         bool
	SnoozeDuration time.Duration
	DeleteAfterUse bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// State identifies where an instance sits in its lifecycle.
type State int

const (
	// StateScheduled marks an instance armed but not yet user visible.
	StateScheduled State = iota
	// StateLowPriority marks an upcoming instance surfaced to the user.
	StateLowPriority
	// StateHighPriority marks an imminent instance.
	StateHighPriority
	// StateFiring marks an instance that is actively alerting.
	StateFiring
	// StateSnoozed marks a firing instance postponed by the user.
	StateSnoozed
	// StateDismissed is the terminal state for a user-acknowledged instance.
	StateDismissed
	// StateMissed is the terminal state for an instance that alerted without
	// user action for too long, or whose wake callback was lost.
	StateMissed
)

// Terminal reports whether the state ends the instance lifecycle.
func (s State) Terminal() bool {
	return s == StateDismissed || s == StateMissed
}

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateLowPriority:
		return "low_priority"
	case StateHighPriority:
		return "high_priority"
	case StateFiring:
		return "firing"
	case StateSnoozed:
		return "snoozed"
	case StateDismissed:
		return "dismissed"
	case StateMissed:
		return "missed"
	default:
		return "unknown"
	}
}

// Instance is the single live occurrence derived from a definition. The
// presentation fields are copied from the definition at creation time so a
// later edit cannot corrupt an occurrence already mid-flight. Generation is a
// monotonic counter used to invalidate stale wake callbacks.
type Instance struct {
	ID           string
	DefinitionID string
	TriggerAt    time.Time
	State        State
	Label        string
	Vibrate      bool
	AlertRef     string
	Silent       bool
	SnoozedUntil *time.Time
	Generation   uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NextAlertAt returns the instant the instance will next demand attention:
// the snooze deadline while snoozed, the trigger instant otherwise.
func (i Instance) NextAlertAt() time.Time {
	if i.State == StateSnoozed && i.SnoozedUntil != nil {
		return *i.SnoozedUntil
	}
	return i.TriggerAt
}
