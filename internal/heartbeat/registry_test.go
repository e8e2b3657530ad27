package heartbeat

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSinceUnknownTaskUsesRegistryStart(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock.Now))

	clock.Advance(3 * time.Second)

	if got := r.Since(42); got != 3*time.Second {
		t.Errorf("expected 3s since registry start, got %v", got)
	}
	if r.Len() != 0 {
		t.Errorf("Since must not create entries, got %d", r.Len())
	}
}

func TestRegisterSetsBaselineOnce(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock.Now))

	clock.Advance(2 * time.Second)
	r.Register(0)
	clock.Advance(time.Second)
	r.Register(0) // must not reset the baseline
	clock.Advance(time.Second)

	if got := r.Since(0); got != 2*time.Second {
		t.Errorf("expected 2s since registration, got %v", got)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", r.Len())
	}
}

func TestSendUpdatesLastSeen(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock.Now))

	r.Register(1)
	clock.Advance(4 * time.Second)
	r.Send(1)
	clock.Advance(500 * time.Millisecond)

	if got := r.Since(1); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}

	last, ok := r.LastSeen(1)
	if !ok {
		t.Fatal("expected entry for task 1")
	}
	if want := clock.Now().Add(-500 * time.Millisecond); !last.Equal(want) {
		t.Errorf("expected last seen %v, got %v", want, last)
	}
}

func TestSendCreatesEntry(t *testing.T) {
	r := NewRegistry()
	r.Send(7)
	r.Send(7)

	if r.Len() != 1 {
		t.Errorf("expected exactly 1 entry, got %d", r.Len())
	}
	if _, ok := r.LastSeen(7); !ok {
		t.Error("expected entry for task 7")
	}
}

func TestCloseDropsLateHeartbeats(t *testing.T) {
	r := NewRegistry()
	r.Send(1)
	r.Close()
	r.Close() // idempotent

	r.Send(1)
	r.Register(2)

	if r.Len() != 0 {
		t.Errorf("expected no entries after close, got %d", r.Len())
	}
}

func TestConcurrentSenders(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for id := 0; id < 16; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Send(id)
				_ = r.Since(id)
			}
		}(id)
	}
	wg.Wait()

	if r.Len() != 16 {
		t.Errorf("expected 16 entries, got %d", r.Len())
	}
}
