package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeNow is an adjustable time source.
type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeNow(t time.Time) *fakeNow { return &fakeNow{t: t} }

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestClockRemainingFromAbsoluteStart(t *testing.T) {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	now := newFakeNow(start)

	c := NewClock(start, 5*time.Minute, WithNow(now.Now))
	if got := c.Remaining(); got != 300 {
		t.Fatalf("Remaining at start = %d, want 300", got)
	}

	// No ticks fired in between: remaining is derived from the wall clock,
	// not from tick counting.
	now.Advance(2 * time.Second)
	if got := c.Remaining(); got != 298 {
		t.Fatalf("Remaining after 2s = %d, want 298", got)
	}

	now.Advance(10 * time.Minute)
	if got := c.Remaining(); got != 0 {
		t.Fatalf("Remaining past deadline = %d, want 0", got)
	}
}

func TestClockExpiresImmediatelyWhenLoadedPastDeadline(t *testing.T) {
	start := time.Now().Add(-10 * time.Minute)

	// A huge tick proves the immediate path does not depend on ticking.
	c := NewClock(start, time.Minute, WithTick(time.Hour))

	fired := make(chan struct{})
	c.Start(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expiry did not fire immediately for an already-expired session")
	}
}

func TestClockFiresExactlyOnce(t *testing.T) {
	start := time.Now()
	c := NewClock(start, 20*time.Millisecond, WithTick(2*time.Millisecond))

	var fires atomic.Int32
	c.Start(func() { fires.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if n := fires.Load(); n != 1 {
		t.Fatalf("expiry fired %d times, want exactly 1", n)
	}
}

func TestClockStopSuppressesExpiry(t *testing.T) {
	c := NewClock(time.Now(), 30*time.Millisecond, WithTick(5*time.Millisecond))

	var fires atomic.Int32
	c.Start(func() { fires.Add(1) })
	c.Stop()

	time.Sleep(80 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Fatalf("expiry fired %d times after Stop, want 0", n)
	}

	// Stop is idempotent.
	c.Stop()
}
