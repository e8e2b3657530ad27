package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() int
}

// NoTask is the TaskID of run-level events.
const NoTask = -1

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted      = "task.started"
	EventTypeTaskHeartbeat    = "task.heartbeat"
	EventTypeTaskCompleted    = "task.completed"
	EventTypeTaskFailed       = "task.failed"
	EventTypeTaskCrashed      = "task.crashed"
	EventTypeTaskCancelled    = "task.cancelled"
	EventTypeTaskStalled      = "task.stalled"
	EventTypeTaskUnresponsive = "task.unresponsive"
	EventTypeRunProgress      = "run.progress"
)

// TaskStartedEvent is published when a task is dispatched.
type TaskStartedEvent struct {
	ID        int
	Input     string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() int       { return e.ID }

// TaskHeartbeatEvent is published on every liveness check that finds the task healthy.
type TaskHeartbeatEvent struct {
	ID        int
	Elapsed   time.Duration // Time since the last heartbeat
	Timestamp time.Time
}

func (e TaskHeartbeatEvent) EventType() string { return EventTypeTaskHeartbeat }
func (e TaskHeartbeatEvent) TaskID() int       { return e.ID }

// TaskCompletedEvent is published when a task returns a value.
type TaskCompletedEvent struct {
	ID        int
	Result    string
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() int       { return e.ID }

// TaskFailedEvent is published when a task returns an error.
type TaskFailedEvent struct {
	ID        int
	Err       error
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() int       { return e.ID }

// TaskCrashedEvent is published when a task's worker dies or is terminated.
type TaskCrashedEvent struct {
	ID        int
	Timestamp time.Time
}

func (e TaskCrashedEvent) EventType() string { return EventTypeTaskCrashed }
func (e TaskCrashedEvent) TaskID() int       { return e.ID }

// TaskCancelledEvent is published when a task acknowledges a cooperative cancel.
type TaskCancelledEvent struct {
	ID        int
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) TaskID() int       { return e.ID }

// TaskStalledEvent is published while a task is past its heartbeat timeout.
type TaskStalledEvent struct {
	ID        int
	Timestamp time.Time
}

func (e TaskStalledEvent) EventType() string { return EventTypeTaskStalled }
func (e TaskStalledEvent) TaskID() int       { return e.ID }

// TaskUnresponsiveEvent is published while a task is past its cancellation grace period.
type TaskUnresponsiveEvent struct {
	ID        int
	Timestamp time.Time
}

func (e TaskUnresponsiveEvent) EventType() string { return EventTypeTaskUnresponsive }
func (e TaskUnresponsiveEvent) TaskID() int       { return e.ID }

// RunProgressEvent is published once per control loop tick.
type RunProgressEvent struct {
	Started   int
	Running   int
	Completed int
	Failed    int // Failed, crashed or force-cancelled
	Cancelled int
	Stalled   int // Running tasks past their heartbeat timeout
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() int       { return NoTask }

// Finished returns the number of tasks with a terminal outcome.
func (e RunProgressEvent) Finished() int {
	return e.Completed + e.Failed + e.Cancelled
}
