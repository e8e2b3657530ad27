package monitor

import (
	"io"
	"log"
	"time"
)

// Debug prints every notification the moment it fires. DisplayProgress is a no-op,
// which makes it suitable for logs and CI output.
type Debug struct {
	log *log.Logger
}

// NewDebug creates a debug observer writing timestamped lines to w.
func NewDebug(w io.Writer) *Debug {
	return &Debug{log: log.New(w, "", log.Ltime|log.Lmicroseconds)}
}

func (d *Debug) Started(id int, input any) {
	d.log.Printf("task %d: started (%s)", id, describe(input, maxInputWidth))
}

func (d *Debug) Completed(id int, result any) {
	d.log.Printf("task %d: completed: %s", id, describe(result, 80))
}

func (d *Debug) Failed(id int, err error) {
	d.log.Printf("task %d: failed: %v", id, err)
}

func (d *Debug) Crashed(id int) {
	d.log.Printf("task %d: crashed", id)
}

func (d *Debug) CancellationAcknowledged(id int) {
	d.log.Printf("task %d: cancellation acknowledged", id)
}

func (d *Debug) NoHeartbeat(id int) {
	d.log.Printf("task %d: no heartbeat, cancel requested", id)
}

func (d *Debug) FailedToStop(id int) {
	d.log.Printf("task %d: failed to stop, forcing", id)
}

func (d *Debug) Heartbeat(id int, elapsed time.Duration) {
	d.log.Printf("task %d: alive (last heartbeat %v ago)", id, elapsed.Round(time.Millisecond))
}

func (d *Debug) DisplayProgress() {}
