// Package monitor defines the lifecycle notifications a run emits and the
// observers that render, print, count or forward them.
package monitor

import (
	"fmt"
	"time"
)

// Observer receives lifecycle notifications from the control loop.
// All callbacks are invoked from the single control loop goroutine.
type Observer interface {
	Started(id int, input any)
	Completed(id int, result any)
	Failed(id int, err error)
	Crashed(id int)
	CancellationAcknowledged(id int)
	NoHeartbeat(id int)
	FailedToStop(id int)
	Heartbeat(id int, elapsed time.Duration)
	DisplayProgress()
}

// Silent discards every notification.
type Silent struct{}

func (Silent) Started(int, any)             {}
func (Silent) Completed(int, any)           {}
func (Silent) Failed(int, error)            {}
func (Silent) Crashed(int)                  {}
func (Silent) CancellationAcknowledged(int) {}
func (Silent) NoHeartbeat(int)              {}
func (Silent) FailedToStop(int)             {}
func (Silent) Heartbeat(int, time.Duration) {}
func (Silent) DisplayProgress()             {}

// Multi fans every notification out to several observers in order.
type Multi []Observer

func (m Multi) Started(id int, input any) {
	for _, o := range m {
		o.Started(id, input)
	}
}

func (m Multi) Completed(id int, result any) {
	for _, o := range m {
		o.Completed(id, result)
	}
}

func (m Multi) Failed(id int, err error) {
	for _, o := range m {
		o.Failed(id, err)
	}
}

func (m Multi) Crashed(id int) {
	for _, o := range m {
		o.Crashed(id)
	}
}

func (m Multi) CancellationAcknowledged(id int) {
	for _, o := range m {
		o.CancellationAcknowledged(id)
	}
}

func (m Multi) NoHeartbeat(id int) {
	for _, o := range m {
		o.NoHeartbeat(id)
	}
}

func (m Multi) FailedToStop(id int) {
	for _, o := range m {
		o.FailedToStop(id)
	}
}

func (m Multi) Heartbeat(id int, elapsed time.Duration) {
	for _, o := range m {
		o.Heartbeat(id, elapsed)
	}
}

func (m Multi) DisplayProgress() {
	for _, o := range m {
		o.DisplayProgress()
	}
}

// describe renders a task input for display, truncated to max runes.
func describe(input any, max int) string {
	s := []rune(fmt.Sprint(input))
	if len(s) <= max {
		return string(s)
	}
	if max <= 3 {
		return string(s[:max])
	}
	return string(s[:max-3]) + "..."
}
