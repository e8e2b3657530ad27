package runner

import (
	"sort"
	"time"
)

// Status represents the lifecycle state of a task.
type Status int

const (
	StatusPending         Status = iota // Queued, not yet dispatched
	StatusRunning                       // Dispatched to the substrate
	StatusCompleted                     // Finished with a value
	StatusFailed                        // Work returned an error, or dispatch failed
	StatusCrashed                       // Worker died without a result
	StatusCancelRequested               // Cooperative cancel issued, awaiting acknowledgement
	StatusCancelled                     // Acknowledged a cooperative cancel
	StatusForceCancelled                // Ignored the cooperative cancel and was terminated
)

var statusNames = map[Status]string{
	StatusPending:         "pending",
	StatusRunning:         "running",
	StatusCompleted:       "completed",
	StatusFailed:          "failed",
	StatusCrashed:         "crashed",
	StatusCancelRequested: "cancel-requested",
	StatusCancelled:       "cancelled",
	StatusForceCancelled:  "force-cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCrashed, StatusCancelled, StatusForceCancelled:
		return true
	}
	return false
}

// Outcome is the terminal record of one input.
type Outcome struct {
	Input    any
	Status   Status
	Value    any           // Set when Status is StatusCompleted
	Err      error         // Failure descriptor for every other terminal status
	Duration time.Duration // Time from dispatch to resolution
}

// Result maps task ids to their outcomes. It holds exactly one entry per input.
type Result map[int]Outcome

// IDs returns the task ids in ascending order.
func (r Result) IDs() []int {
	ids := make([]int, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Count returns how many outcomes have the given status.
func (r Result) Count(status Status) int {
	n := 0
	for _, o := range r {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Inputs returns, in submission order, the inputs whose outcome has one of the statuses.
func (r Result) Inputs(statuses ...Status) []any {
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var inputs []any
	for _, id := range r.IDs() {
		if o := r[id]; want[o.Status] {
			inputs = append(inputs, o.Input)
		}
	}
	return inputs
}

// Failed returns the inputs worth re-running in a fresh batch.
func (r Result) Failed() []any {
	return r.Inputs(StatusFailed, StatusCrashed, StatusForceCancelled)
}
