package substrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Local runs each task in its own goroutine with a private cancellable context.
// Subprocesses started through RunCommand inside a task are tracked per task, so a
// forced cancel kills the task's process groups and resolves its future immediately.
type Local struct {
	mu     sync.Mutex
	tasks  map[*Future]*localTask
	closed bool
}

type localTask struct {
	cancel          context.CancelFunc
	cancelRequested atomic.Bool
	procs           *ProcessManager
}

// NewLocal creates an in-process substrate.
func NewLocal() *Local {
	return &Local{
		tasks: make(map[*Future]*localTask),
	}
}

// LocalFactory opens a fresh Local substrate per run.
func LocalFactory(ctx context.Context) (Substrate, error) {
	return NewLocal(), nil
}

// Submit starts the task. The task context is detached from ctx: only Cancel and
// Close stop a running unit.
func (l *Local) Submit(ctx context.Context, task Task) (*Future, error) {
	if task.Work == nil {
		return nil, fmt.Errorf("task %d has no work function", task.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	procs := NewProcessManager()
	tctx, cancel := context.WithCancel(withProcessManager(context.WithoutCancel(ctx), procs))
	lt := &localTask{cancel: cancel, procs: procs}
	f := NewFuture(task.ID)
	l.tasks[f] = lt

	go func() {
		value, err := execute(tctx, task)
		if err != nil && lt.cancelRequested.Load() && errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		f.Resolve(value, err)

		l.mu.Lock()
		delete(l.tasks, f)
		l.mu.Unlock()
		cancel()
	}()

	return f, nil
}

// execute runs the work function, converting a panic into ErrCrashed.
func execute(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: task %d panicked: %v\n%s", task.ID, r, debug.Stack())
			value = nil
			err = fmt.Errorf("%w: panic: %v", ErrCrashed, r)
		}
	}()

	heartbeat := task.Heartbeat
	if heartbeat == nil {
		heartbeat = func() {}
	}
	return task.Work(ctx, task.Input, heartbeat)
}

// Wait blocks for at most timeout until one of the futures resolves.
func (l *Local) Wait(ctx context.Context, futures []*Future, timeout time.Duration) []*Future {
	return WaitAny(ctx, futures, timeout)
}

// Result returns the settled value and error of f.
func (l *Local) Result(f *Future) (any, error) {
	return f.Result()
}

// Cancel stops a task. A cooperative cancel cancels the task context (which also
// sends SIGTERM to its process groups). A forced cancel additionally kills the process
// groups and resolves the future with ErrForceCancelled; the goroutine itself cannot be
// stopped and its eventual result is discarded.
func (l *Local) Cancel(f *Future, force bool) error {
	l.mu.Lock()
	lt, ok := l.tasks[f]
	if ok && force {
		delete(l.tasks, f)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}

	lt.cancelRequested.Store(true)
	lt.cancel()
	if !force {
		return nil
	}

	err := lt.procs.KillAll()
	f.Resolve(nil, ErrForceCancelled)
	if err != nil {
		return fmt.Errorf("force cancel task %d: %w", f.ID(), err)
	}
	return nil
}

// Running returns the number of tasks not yet resolved.
func (l *Local) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close force-cancels every running task. Safe to call multiple times.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	futures := make([]*Future, 0, len(l.tasks))
	for f := range l.tasks {
		futures = append(futures, f)
	}
	l.mu.Unlock()

	var errs []error
	for _, f := range futures {
		if err := l.Cancel(f, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
