package substrate

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"
)

// Sentinel errors carried by resolved futures. The runner classifies outcomes with errors.Is.
var (
	// ErrCancelled means the unit observed a cooperative cancel and stopped.
	ErrCancelled = errors.New("task acknowledged cancellation")
	// ErrCrashed means the worker died without producing a result (panic, unexpected signal).
	ErrCrashed = errors.New("task worker crashed")
	// ErrForceCancelled means the unit ignored a cooperative cancel and was terminated.
	ErrForceCancelled = errors.New("task force-cancelled")
	// ErrClosed is returned when submitting to a closed substrate.
	ErrClosed = errors.New("substrate closed")
	// ErrNotDone is returned by Result for a future that has not resolved yet.
	ErrNotDone = errors.New("task not done")
)

// WorkFunc is a unit of work. It must call heartbeat periodically while it makes
// progress and should return promptly once ctx is cancelled.
type WorkFunc func(ctx context.Context, input any, heartbeat func()) (any, error)

// Task is a single dispatch request.
type Task struct {
	ID        int
	Input     any
	Work      WorkFunc
	Heartbeat func()
}

// Substrate executes tasks in isolation and reports their completion.
type Substrate interface {
	// Submit starts the task and returns its handle.
	Submit(ctx context.Context, task Task) (*Future, error)
	// Wait blocks until at least one of the futures is resolved, the timeout
	// elapses, or ctx is done. It returns the resolved subset.
	Wait(ctx context.Context, futures []*Future, timeout time.Duration) []*Future
	// Result returns the value or error of a resolved future.
	Result(f *Future) (any, error)
	// Cancel requests termination. force=false is cooperative; force=true terminates
	// the worker and resolves the future with ErrForceCancelled. Reissuing is safe.
	Cancel(f *Future, force bool) error
	// Close releases the substrate and terminates anything still running.
	Close() error
}

// Factory opens a substrate for a single run.
type Factory func(ctx context.Context) (Substrate, error)

// Future is the handle to a dispatched task. It resolves exactly once.
type Future struct {
	id    int
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// NewFuture creates an unresolved future for the given task id.
func NewFuture(id int) *Future {
	return &Future{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the task id the future belongs to.
func (f *Future) ID() int { return f.id }

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Resolved reports whether the future has settled.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Resolve settles the future. Only the first call has an effect; it reports whether
// this call was the one that settled it.
func (f *Future) Resolve(value any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Result returns the settled value and error, or ErrNotDone.
func (f *Future) Result() (any, error) {
	if !f.Resolved() {
		return nil, ErrNotDone
	}
	return f.value, f.err
}

// WaitAny implements the bounded wait shared by substrates whose futures resolve
// through Future.Resolve.
func WaitAny(ctx context.Context, futures []*Future, timeout time.Duration) []*Future {
	if len(futures) == 0 {
		return nil
	}
	if done := resolved(futures); len(done) > 0 {
		return done
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	cases := make([]reflect.SelectCase, 0, len(futures)+2)
	cases = append(cases,
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)},
	)
	for _, f := range futures {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(f.done)})
	}
	reflect.Select(cases)

	return resolved(futures)
}

func resolved(futures []*Future) []*Future {
	var done []*Future
	for _, f := range futures {
		if f.Resolved() {
			done = append(done, f)
		}
	}
	return done
}
