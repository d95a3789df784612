package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestTokenString(t *testing.T) {
	t.Parallel()

	token := Token{InstanceID: "inst-1", Generation: 4}
	if got := token.String(); got != "inst-1@4" {
		t.Fatalf("expected inst-1@4, got %q", got)
	}
}

func TestTimerSchedulerFiresPastInstantImmediately(t *testing.T) {
	t.Parallel()

	fired := make(chan Token, 1)
	s := NewTimerScheduler(func(token Token) { fired <- token }, nil)
	defer s.Close()

	token := Token{InstanceID: "inst-1", Generation: 1}
	if err := s.Schedule(time.Now().Add(-time.Minute), token); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case got := <-fired:
		if got != token {
			t.Fatalf("expected %v, got %v", token, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
	if s.Pending() != 0 {
		t.Fatalf("expected fired timer forgotten, pending=%d", s.Pending())
	}
}

func TestTimerSchedulerCancelPreventsDelivery(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var fired []Token
	s := NewTimerScheduler(func(token Token) {
		mu.Lock()
		fired = append(fired, token)
		mu.Unlock()
	}, nil)
	defer s.Close()

	token := Token{InstanceID: "inst-1", Generation: 1}
	if err := s.Schedule(time.Now().Add(50*time.Millisecond), token); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	s.Cancel(token)

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 0 {
		t.Fatalf("cancelled timer fired: %v", fired)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", s.Pending())
	}
}

func TestTimerSchedulerRescheduleReplacesTimer(t *testing.T) {
	t.Parallel()

	fired := make(chan Token, 2)
	s := NewTimerScheduler(func(token Token) { fired <- token }, nil)
	defer s.Close()

	token := Token{InstanceID: "inst-1", Generation: 1}
	if err := s.Schedule(time.Now().Add(time.Hour), token); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Schedule(time.Now(), token); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled timer never fired")
	}

	select {
	case got := <-fired:
		t.Fatalf("token delivered twice: %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerSchedulerDistinctGenerationsAreIndependent(t *testing.T) {
	t.Parallel()

	fired := make(chan Token, 2)
	s := NewTimerScheduler(func(token Token) { fired <- token }, nil)
	defer s.Close()

	old := Token{InstanceID: "inst-1", Generation: 1}
	current := Token{InstanceID: "inst-1", Generation: 2}
	if err := s.Schedule(time.Now().Add(time.Hour), old); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Schedule(time.Now(), current); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if s.Pending() != 2 {
		t.Fatalf("expected two independent timers, got %d", s.Pending())
	}

	select {
	case got := <-fired:
		if got != current {
			t.Fatalf("expected generation 2 delivery, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestTimerSchedulerClose(t *testing.T) {
	t.Parallel()

	s := NewTimerScheduler(func(Token) {}, nil)
	token := Token{InstanceID: "inst-1", Generation: 1}
	if err := s.Schedule(time.Now().Add(time.Hour), token); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	s.Close()
	if s.Pending() != 0 {
		t.Fatalf("expected close to drop timers, got %d", s.Pending())
	}
	if err := s.Schedule(time.Now(), token); err != ErrSchedulerClosed {
		t.Fatalf("expected ErrSchedulerClosed, got %v", err)
	}
}
