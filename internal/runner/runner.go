package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aristath/taskwatch/internal/heartbeat"
	"github.com/aristath/taskwatch/internal/monitor"
	"github.com/aristath/taskwatch/internal/substrate"
)

// ErrRunAborted is the failure descriptor of inputs that were never dispatched because
// the run's context was cancelled.
var ErrRunAborted = errors.New("run aborted before dispatch")

// TaskRecord is the control loop's view of one dispatched task.
type TaskRecord struct {
	ID         int
	Input      any
	Future     *substrate.Future
	Status     Status
	Dispatched time.Time
	forced     bool
}

// Runner executes batches of independent work units with bounded concurrency,
// supervising each unit through heartbeats.
type Runner struct {
	cfg Config
}

// New creates a runner. The configuration is validated when Run is called.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg.withDefaults()}
}

// Run is a convenience wrapper building a Runner with the default substrate.
func Run(ctx context.Context, work substrate.WorkFunc, inputs []any, maxConcurrency int, timeout time.Duration, observer monitor.Observer) (Result, error) {
	return New(Config{
		MaxConcurrency: maxConcurrency,
		Timeout:        timeout,
		Observer:       observer,
	}).Run(ctx, work, inputs)
}

// RunID returns the identifier used in this runner's log lines.
func (r *Runner) RunID() string {
	return r.cfg.RunID
}

// Run dispatches every input to work and returns one outcome per input, keyed by a
// sequential id assigned in input order.
//
// Failures of individual units never abort the batch. Run returns an error only for
// an invalid configuration (before anything is dispatched), a substrate that cannot be
// opened, or a cancelled ctx; in the last case the returned Result is still complete.
func (r *Runner) Run(ctx context.Context, work substrate.WorkFunc, inputs []any) (Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if work == nil {
		return nil, &ConfigError{Field: "work", Reason: "must not be nil"}
	}

	result := make(Result, len(inputs))
	if len(inputs) == 0 {
		return result, nil
	}

	sub, err := r.cfg.Substrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening substrate: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			r.cfg.Logger.Printf("WARNING: failed to close substrate: %v", err)
		}
	}()

	registry := heartbeat.NewRegistry()
	defer registry.Close()

	s := &run{
		cfg:      r.cfg,
		log:      r.cfg.Logger,
		sub:      sub,
		registry: registry,
		work:     work,
		queue:    append([]any(nil), inputs...),
		result:   result,
	}

	for len(s.queue) > 0 || len(s.running) > 0 {
		if err := ctx.Err(); err != nil {
			s.abort(err)
			return s.result, err
		}

		s.admit(ctx)
		s.collect(ctx)
		s.sweep()
		s.notify("DisplayProgress", func(o monitor.Observer) { o.DisplayProgress() })
	}

	return s.result, nil
}

// run holds the state of a single Run call. It is owned by the control loop.
type run struct {
	cfg      Config
	log      *log.Logger
	sub      substrate.Substrate
	registry *heartbeat.Registry
	work     substrate.WorkFunc

	queue   []any
	nextID  int
	running []*TaskRecord // ascending id order
	result  Result
}

// admit dispatches queued inputs in FIFO order until the concurrency cap is reached.
func (s *run) admit(ctx context.Context) {
	for len(s.queue) > 0 && len(s.running) < s.cfg.MaxConcurrency {
		input := s.queue[0]
		s.queue = s.queue[1:]

		id := s.nextID
		s.nextID++

		s.registry.Register(id)
		rec := &TaskRecord{
			ID:         id,
			Input:      input,
			Status:     StatusRunning,
			Dispatched: time.Now(),
		}

		future, err := s.sub.Submit(ctx, substrate.Task{
			ID:        id,
			Input:     input,
			Work:      s.work,
			Heartbeat: func() { s.registry.Send(id) },
		})

		s.notify("Started", func(o monitor.Observer) { o.Started(id, input) })

		if err != nil {
			s.log.Printf("ERROR: failed to dispatch task %d: %v", id, err)
			dispatchErr := fmt.Errorf("dispatch: %w", err)
			s.finish(rec, Outcome{Status: StatusFailed, Err: dispatchErr})
			s.notify("Failed", func(o monitor.Observer) { o.Failed(id, dispatchErr) })
			continue
		}

		rec.Future = future
		s.running = append(s.running, rec)
	}
}

// collect waits up to one poll interval and records every resolved task.
func (s *run) collect(ctx context.Context) {
	if len(s.running) == 0 {
		return
	}

	futures := make([]*substrate.Future, len(s.running))
	for i, rec := range s.running {
		futures[i] = rec.Future
	}

	done := s.sub.Wait(ctx, futures, s.cfg.PollInterval)
	if len(done) == 0 {
		return
	}

	resolved := make(map[*substrate.Future]bool, len(done))
	for _, f := range done {
		resolved[f] = true
	}

	still := s.running[:0]
	for _, rec := range s.running {
		if !resolved[rec.Future] {
			still = append(still, rec)
			continue
		}
		s.resolve(rec)
	}
	s.running = still
}

// resolve classifies a resolved task and records its outcome.
func (s *run) resolve(rec *TaskRecord) {
	value, err := s.sub.Result(rec.Future)
	id := rec.ID

	switch {
	case err == nil:
		s.finish(rec, Outcome{Status: StatusCompleted, Value: value})
		s.notify("Completed", func(o monitor.Observer) { o.Completed(id, value) })
	case errors.Is(err, substrate.ErrForceCancelled):
		s.finish(rec, Outcome{Status: StatusForceCancelled, Err: err})
		s.notify("Crashed", func(o monitor.Observer) { o.Crashed(id) })
	case errors.Is(err, substrate.ErrCrashed):
		s.finish(rec, Outcome{Status: StatusCrashed, Err: err})
		s.notify("Crashed", func(o monitor.Observer) { o.Crashed(id) })
	case errors.Is(err, substrate.ErrCancelled):
		s.finish(rec, Outcome{Status: StatusCancelled, Err: err})
		s.notify("CancellationAcknowledged", func(o monitor.Observer) { o.CancellationAcknowledged(id) })
	default:
		s.finish(rec, Outcome{Status: StatusFailed, Err: err})
		s.notify("Failed", func(o monitor.Observer) { o.Failed(id, err) })
	}
}

// sweep checks the liveness of every task still running and escalates cancellation.
func (s *run) sweep() {
	timeout := s.cfg.Timeout
	deadline := s.cfg.Timeout + s.cfg.Grace

	for _, rec := range s.running {
		id := rec.ID
		elapsed := s.registry.Since(id)

		switch {
		case elapsed > deadline && rec.Status == StatusCancelRequested:
			if !rec.forced {
				rec.forced = true
				s.log.Printf("WARNING: task %d ignored cancellation for %v, forcing", id, elapsed-timeout)
				if err := s.sub.Cancel(rec.Future, true); err != nil {
					s.log.Printf("ERROR: failed to force-cancel task %d: %v", id, err)
				}
			}
			s.notify("FailedToStop", func(o monitor.Observer) { o.FailedToStop(id) })
		case elapsed > timeout:
			if rec.Status != StatusCancelRequested {
				rec.Status = StatusCancelRequested
				s.log.Printf("WARNING: no heartbeat from task %d for %v, cancelling", id, elapsed)
				if err := s.sub.Cancel(rec.Future, false); err != nil {
					s.log.Printf("ERROR: failed to cancel task %d: %v", id, err)
				}
			}
			s.notify("NoHeartbeat", func(o monitor.Observer) { o.NoHeartbeat(id) })
		default:
			s.notify("Heartbeat", func(o monitor.Observer) { o.Heartbeat(id, elapsed) })
		}
	}
}

// abort force-cancels running tasks and records never-dispatched inputs.
func (s *run) abort(cause error) {
	s.log.Printf("WARNING: run aborted: %v", cause)

	for _, rec := range s.running {
		if err := s.sub.Cancel(rec.Future, true); err != nil {
			s.log.Printf("ERROR: failed to force-cancel task %d: %v", rec.ID, err)
		}
		if rec.Future.Resolved() {
			s.resolve(rec)
			continue
		}
		s.finish(rec, Outcome{Status: StatusForceCancelled, Err: fmt.Errorf("%w: %v", substrate.ErrForceCancelled, cause)})
	}
	s.running = nil

	for _, input := range s.queue {
		id := s.nextID
		s.nextID++
		s.result[id] = Outcome{Input: input, Status: StatusCancelled, Err: ErrRunAborted}
	}
	s.queue = nil
}

// finish stores the terminal outcome of rec.
func (s *run) finish(rec *TaskRecord, outcome Outcome) {
	rec.Status = outcome.Status
	outcome.Input = rec.Input
	outcome.Duration = time.Since(rec.Dispatched)
	s.result[rec.ID] = outcome
}

// notify invokes an observer callback, containing any panic it raises.
func (s *run) notify(name string, fn func(monitor.Observer)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("ERROR: observer %s panicked: %v", name, r)
		}
	}()
	fn(s.cfg.Observer)
}
