// Package rerun re-runs the failed inputs of a batch as fresh runs, waiting with
// exponential backoff between rounds.
package rerun

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristath/taskwatch/internal/runner"
)

// errFailuresRemain marks a round that left failed inputs behind.
var errFailuresRemain = errors.New("failed inputs remain")

// Config configures how many extra rounds run and how long to wait between them.
type Config struct {
	Retries             int           // Extra rounds after the first; 0 runs the batch once
	InitialInterval     time.Duration // Wait before the first extra round (default 1s)
	MaxInterval         time.Duration // Upper bound on the wait (default 30s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultConfig returns the default wait policy with no extra rounds.
func DefaultConfig() Config {
	return Config{
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// RoundFunc runs one batch. Each call is expected to be a fresh run.
type RoundFunc func(ctx context.Context, inputs []any) (runner.Result, error)

// Report holds the final outcome of every input, indexed like the original inputs.
type Report struct {
	Outcomes []runner.Outcome
	Rounds   int
}

// Failed returns the indices of inputs whose final outcome is a failure.
func (r Report) Failed() []int {
	var idx []int
	for i, o := range r.Outcomes {
		switch o.Status {
		case runner.StatusFailed, runner.StatusCrashed, runner.StatusForceCancelled:
			idx = append(idx, i)
		}
	}
	return idx
}

// Count returns the number of final outcomes with the given status.
func (r Report) Count(status runner.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Result converts the report into a runner.Result keyed by original input index.
func (r Report) Result() runner.Result {
	result := make(runner.Result, len(r.Outcomes))
	for i, o := range r.Outcomes {
		result[i] = o
	}
	return result
}

// Run executes round over inputs, then re-runs the inputs that failed, crashed or
// were force-cancelled until none remain or cfg.Retries extra rounds have run.
// Cancelled inputs are not re-run. An error from round stops further rounds and is
// returned with the outcomes gathered so far.
func Run(ctx context.Context, cfg Config, round RoundFunc, inputs []any) (Report, error) {
	report := Report{Outcomes: make([]runner.Outcome, len(inputs))}
	pending := make([]int, len(inputs))
	for i := range pending {
		pending[i] = i
	}

	operation := func() error {
		batch := make([]any, len(pending))
		for i, idx := range pending {
			batch[i] = inputs[idx]
		}
		if report.Rounds > 0 {
			log.Printf("Re-running %d failed inputs (round %d)", len(batch), report.Rounds+1)
		}
		report.Rounds++

		// Result ids are assigned in batch order.
		result, err := round(ctx, batch)
		for id, outcome := range result {
			if id >= 0 && id < len(pending) {
				report.Outcomes[pending[id]] = outcome
			}
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		pending = report.Failed()
		if len(pending) > 0 {
			return errFailuresRemain
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = 0 // bounded by the retry count
	policy.Multiplier = cfg.Multiplier
	policy.RandomizationFactor = cfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(cfg.Retries, 0))), ctx))
	if errors.Is(err, errFailuresRemain) {
		return report, nil
	}
	return report, err
}
