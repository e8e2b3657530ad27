package rerun

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/taskwatch/internal/runner"
)

func fastConfig(retries int) Config {
	return Config{
		Retries:         retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

// flakyRound fails each input until it has been attempted failUntil[input] times.
type flakyRound struct {
	failUntil map[string]int
	attempts  map[string]int
	batches   [][]any
}

func newFlakyRound(failUntil map[string]int) *flakyRound {
	return &flakyRound{failUntil: failUntil, attempts: make(map[string]int)}
}

func (f *flakyRound) run(ctx context.Context, inputs []any) (runner.Result, error) {
	f.batches = append(f.batches, inputs)
	result := make(runner.Result, len(inputs))
	for id, in := range inputs {
		key := in.(string)
		f.attempts[key]++
		if f.attempts[key] <= f.failUntil[key] {
			result[id] = runner.Outcome{Input: in, Status: runner.StatusFailed, Err: errors.New("boom")}
			continue
		}
		result[id] = runner.Outcome{Input: in, Status: runner.StatusCompleted, Value: key + "!"}
	}
	return result, nil
}

// TestRun_RerunsOnlyFailedInputs verifies failed inputs are re-run alone and the
// final outcomes line up with the original input positions.
func TestRun_RerunsOnlyFailedInputs(t *testing.T) {
	round := newFlakyRound(map[string]int{"b": 1, "c": 2})

	report, err := Run(context.Background(), fastConfig(3), round.run, []any{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", report.Rounds)
	}
	if len(round.batches[1]) != 2 || len(round.batches[2]) != 1 || round.batches[2][0] != "c" {
		t.Errorf("unexpected batches %v", round.batches)
	}
	for i, want := range []string{"a!", "b!", "c!"} {
		if got := report.Outcomes[i]; got.Status != runner.StatusCompleted || got.Value != want {
			t.Errorf("input %d: expected completed %q, got %v %v", i, want, got.Status, got.Value)
		}
	}
	if n := report.Count(runner.StatusCompleted); n != 3 {
		t.Errorf("expected 3 completed, got %d", n)
	}
}

// TestRun_StopsAfterRetries verifies persistent failures are reported, not returned
// as an error.
func TestRun_StopsAfterRetries(t *testing.T) {
	round := newFlakyRound(map[string]int{"bad": 100})

	report, err := Run(context.Background(), fastConfig(2), round.run, []any{"ok", "bad"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rounds != 3 {
		t.Errorf("expected 1 run plus 2 retries, got %d rounds", report.Rounds)
	}
	if failed := report.Failed(); len(failed) != 1 || failed[0] != 1 {
		t.Errorf("expected input 1 failed, got %v", failed)
	}
	if got := report.Result()[1].Status; got != runner.StatusFailed {
		t.Errorf("expected failed status in result, got %v", got)
	}
}

func TestRun_NoRetries(t *testing.T) {
	round := newFlakyRound(map[string]int{"a": 1})

	report, err := Run(context.Background(), fastConfig(0), round.run, []any{"a"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rounds != 1 || len(report.Failed()) != 1 {
		t.Errorf("expected a single failed round, got %d rounds, failed %v", report.Rounds, report.Failed())
	}
}

// TestRun_CancelledInputsNotRerun verifies only failures are retried.
func TestRun_CancelledInputsNotRerun(t *testing.T) {
	calls := 0
	round := func(ctx context.Context, inputs []any) (runner.Result, error) {
		calls++
		return runner.Result{0: {Input: inputs[0], Status: runner.StatusCancelled, Err: errors.New("cancelled")}}, nil
	}

	report, err := Run(context.Background(), fastConfig(5), round, []any{"x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 || report.Count(runner.StatusCancelled) != 1 {
		t.Errorf("expected one round with a cancelled outcome, got %d calls", calls)
	}
}

// TestRun_RoundErrorStops verifies an aborted round ends the re-run with its outcomes.
func TestRun_RoundErrorStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	round := func(ctx context.Context, inputs []any) (runner.Result, error) {
		calls++
		cancel()
		result := runner.Result{0: {Input: inputs[0], Status: runner.StatusFailed, Err: runner.ErrRunAborted}}
		return result, ctx.Err()
	}

	report, err := Run(ctx, fastConfig(5), round, []any{"x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single round, got %d", calls)
	}
	if report.Outcomes[0].Err != runner.ErrRunAborted {
		t.Errorf("expected outcome of the aborted round, got %v", report.Outcomes[0].Err)
	}
}
