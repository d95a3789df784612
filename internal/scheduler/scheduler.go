// Package scheduler provides the wake-up callback collaborator: a registry of
// pending wall-clock callbacks keyed by an opaque token pairing an instance id
// with its generation counter. Stale deliveries are rejected by the consumer
// comparing generations, so cancellation here is best effort.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Token identifies one registered wake-up callback. The generation counter
// lets the consumer discard callbacks armed for a superseded instance state.
type Token struct {
	InstanceID string
	Generation uint64
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d", t.InstanceID, t.Generation)
}

// WakeScheduler registers callbacks that fire at-or-after the requested
// instant, never meaningfully before. Callbacks do not survive process
// restarts; the reconciliation pass re-arms them.
type WakeScheduler interface {
	Schedule(at time.Time, token Token) error
	Cancel(token Token)
}

// Callback receives the token of a fired wake-up.
type Callback func(token Token)

// ErrSchedulerClosed is returned when scheduling against a closed scheduler.
var ErrSchedulerClosed = errors.New("scheduler: closed")

// TimerScheduler is an in-process WakeScheduler backed by one time.Timer per
// token. Scheduling an already-registered token replaces its timer.
type TimerScheduler struct {
	mu       sync.Mutex
	timers   map[Token]*time.Timer
	callback Callback
	logger   *slog.Logger
	closed   bool
}

// NewTimerScheduler constructs a scheduler delivering fired tokens to the
// provided callback. The callback runs on the timer goroutine.
func NewTimerScheduler(callback Callback, logger *slog.Logger) *TimerScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimerScheduler{
		timers:   make(map[Token]*time.Timer),
		callback: callback,
		logger:   logger,
	}
}

// Schedule arms a timer for the token. An instant in the past fires
// immediately.
func (s *TimerScheduler) Schedule(at time.Time, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}

	if existing, ok := s.timers[token]; ok {
		existing.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.timers[token] = time.AfterFunc(delay, func() {
		s.fire(token)
	})
	s.logger.Debug("wake callback armed", "token", token.String(), "at", at)
	return nil
}

// Cancel stops and forgets the timer for the token, if any.
func (s *TimerScheduler) Cancel(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[token]; ok {
		timer.Stop()
		delete(s.timers, token)
	}
}

// Close cancels every pending timer and rejects further scheduling.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for token, timer := range s.timers {
		timer.Stop()
		delete(s.timers, token)
	}
}

// Pending reports the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TimerScheduler) fire(token Token) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, token)
	callback := s.callback
	s.mu.Unlock()

	if callback != nil {
		callback(token)
	}
}
