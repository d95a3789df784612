package alarm

import (
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is an immutable seven-bit mask of weekdays. Bit 0 is Monday and
// bit 6 is Sunday, keeping the internal ordering independent of locale
// first-day-of-week conventions. The zero value is the empty set, which marks
// a definition as non-repeating.
type WeekdaySet uint8

// MaxWeekdaySetBits is the largest valid bit pattern (all seven days enabled).
const MaxWeekdaySetBits = 0x7F

// ErrInvalidWeekdayBits indicates a raw bit pattern outside the valid range.
var ErrInvalidWeekdayBits = fmt.Errorf("alarm: weekday bits must be in [0, %d]", MaxWeekdaySetBits)

// NewWeekdaySet builds a set containing the provided weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, day := range days {
		s |= 1 << dayIndex(day)
	}
	return s
}

// WeekdaySetFromBits validates and converts a raw bit pattern, as read from
// persistence, into a WeekdaySet.
func WeekdaySetFromBits(bits uint8) (WeekdaySet, error) {
	if bits > MaxWeekdaySetBits {
		return 0, ErrInvalidWeekdayBits
	}
	return WeekdaySet(bits), nil
}

// Bits exposes the raw mask for persistence.
func (s WeekdaySet) Bits() uint8 {
	return uint8(s)
}

// IsRepeating reports whether any weekday is enabled. An empty set means the
// definition fires once and is then disabled.
func (s WeekdaySet) IsRepeating() bool {
	return s != 0
}

// Contains reports whether the given weekday is enabled.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	return s&(1<<dayIndex(day)) != 0
}

// With returns a copy of the set with the given weekday enabled or disabled.
func (s WeekdaySet) With(day time.Weekday, enabled bool) WeekdaySet {
	if enabled {
		return s | 1<<dayIndex(day)
	}
	return s &^ (1 << dayIndex(day))
}

// Weekdays returns the enabled weekdays in Monday-first order.
func (s WeekdaySet) Weekdays() []time.Weekday {
	if s == 0 {
		return nil
	}
	days := make([]time.Weekday, 0, 7)
	for i := 0; i < 7; i++ {
		if s&(1<<i) != 0 {
			days = append(days, weekdayAt(i))
		}
	}
	return days
}

// DaysUntilNext returns the number of calendar days from the reference weekday
// to the next enabled weekday. When allowSameDay is true a match on the
// reference day itself counts as zero days; otherwise the same weekday is only
// reachable on the wraparound pass seven days out. Returns -1 for the empty
// set.
func (s WeekdaySet) DaysUntilNext(from time.Weekday, allowSameDay bool) int {
	if s == 0 {
		return -1
	}
	start := dayIndex(from)
	for offset := 0; offset < 7; offset++ {
		if s&(1<<((start+offset)%7)) == 0 {
			continue
		}
		if offset > 0 || allowSameDay {
			return offset
		}
	}
	// Only the reference day matches and same-day is excluded; the match
	// lands on the same weekday one week out.
	return 7
}

// String renders the enabled days as a comma separated list, for logs.
func (s WeekdaySet) String() string {
	if s == 0 {
		return "none"
	}
	names := make([]string, 0, 7)
	for _, day := range s.Weekdays() {
		names = append(names, day.String()[:3])
	}
	return strings.Join(names, ",")
}

// dayIndex maps time.Weekday (Sunday=0) onto the internal Monday=0 ordering.
func dayIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}

func weekdayAt(index int) time.Weekday {
	return time.Weekday((index + 1) % 7)
}
