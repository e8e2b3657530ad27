package heartbeat

import (
	"sync"
	"time"
)

// Registry records the last liveness signal for each task of a run.
// Running tasks write to it through Send; the control loop reads it through Since.
// A Registry is scoped to a single run and must be closed when the run ends.
type Registry struct {
	mu       sync.RWMutex
	lastSeen map[int]time.Time
	started  time.Time
	closed   bool
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source. Used by tests to drive elapsed time.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry whose fallback baseline is the creation time.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		lastSeen: make(map[int]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.started = r.now()
	return r
}

// Register records the dispatch time of a task as its liveness baseline.
// It does nothing if the task already has an entry.
func (r *Registry) Register(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if _, ok := r.lastSeen[id]; ok {
		return
	}
	r.lastSeen[id] = r.now()
}

// Send records a heartbeat for the task, creating its entry on first use.
// Heartbeats arriving after Close are dropped.
func (r *Registry) Send(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.lastSeen[id] = r.now()
}

// Since returns the time elapsed since the task's last heartbeat.
// Tasks without an entry are measured from the registry's creation.
func (r *Registry) Since(id int) time.Duration {
	r.mu.RLock()
	last, ok := r.lastSeen[id]
	started := r.started
	r.mu.RUnlock()

	if !ok {
		last = started
	}
	return r.now().Sub(last)
}

// LastSeen returns the recorded timestamp for a task, if any.
func (r *Registry) LastSeen(id int) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastSeen[id]
	return t, ok
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lastSeen)
}

// Close discards all entries. Safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.lastSeen = make(map[int]time.Time)
}
