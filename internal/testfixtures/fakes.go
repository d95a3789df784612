package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/scheduler"
)

// FakeScheduler records wake registrations without arming real timers. Tests
// drive callbacks by feeding recorded tokens back into the service.
type FakeScheduler struct {
	mu      sync.Mutex
	pending map[scheduler.Token]time.Time

	// FailNext, when non-nil, is returned by the next Schedule call and then
	// cleared, simulating a platform registration rejection.
	FailNext error

	// Cancelled counts Cancel calls, including those for unknown tokens.
	Cancelled int
}

// NewFakeScheduler returns an empty recording scheduler.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{pending: make(map[scheduler.Token]time.Time)}
}

// Schedule records the registration, replacing any existing entry for the token.
func (f *FakeScheduler) Schedule(at time.Time, token scheduler.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailNext; err != nil {
		f.FailNext = nil
		return err
	}
	f.pending[token] = at
	return nil
}

// Cancel removes the registration for the token.
func (f *FakeScheduler) Cancel(token scheduler.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled++
	delete(f.pending, token)
}

// Pending returns the number of recorded registrations.
func (f *FakeScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// ScheduledAt reports the registered instant for the token.
func (f *FakeScheduler) ScheduledAt(token scheduler.Token) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.pending[token]
	return at, ok
}

// NextToken returns the token with the earliest registered instant.
func (f *FakeScheduler) NextToken() (scheduler.Token, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best scheduler.Token
	var bestAt time.Time
	found := false
	for token, at := range f.pending {
		if !found || at.Before(bestAt) || (at.Equal(bestAt) && token.InstanceID < best.InstanceID) {
			best = token
			bestAt = at
			found = true
		}
	}
	return best, found
}

// TokenFor returns the registered token for an instance id.
func (f *FakeScheduler) TokenFor(instanceID string) (scheduler.Token, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token := range f.pending {
		if token.InstanceID == instanceID {
			return token, true
		}
	}
	return scheduler.Token{}, false
}

// Snapshot returns the pending registrations sorted by instant, for
// comparing scheduler state across reconciliation runs.
func (f *FakeScheduler) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]string, 0, len(f.pending))
	for token, at := range f.pending {
		entries = append(entries, fmt.Sprintf("%s@%s", token.String(), at.UTC().Format(time.RFC3339Nano)))
	}
	sort.Strings(entries)
	return entries
}

// FakeNotifier records emitted signals in order.
type FakeNotifier struct {
	mu     sync.Mutex
	events []string
}

// NewFakeNotifier returns an empty recording notifier.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (f *FakeNotifier) record(kind string, inst alarm.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf("%s:%s:%s", kind, inst.ID, inst.State.String()))
}

func (f *FakeNotifier) InstanceStateChanged(ctx context.Context, inst alarm.Instance) {
	f.record("state", inst)
}

func (f *FakeNotifier) AlertStarted(ctx context.Context, inst alarm.Instance) {
	f.record("alert_start", inst)
}

func (f *FakeNotifier) AlertStopped(ctx context.Context, inst alarm.Instance) {
	f.record("alert_stop", inst)
}

// Events returns a copy of the recorded signals.
func (f *FakeNotifier) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

// Reset clears recorded signals.
func (f *FakeNotifier) Reset() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}
