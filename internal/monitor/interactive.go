package monitor

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// clearSequence moves the cursor home and clears the terminal.
const clearSequence = "\033[H\033[2J"

const (
	heartbeatMarker = "."
	maxInputWidth   = 32
)

type lineKind int

const (
	kindRunning lineKind = iota
	kindWarning
	kindDone
	kindFailed
)

type taskLine struct {
	name    string
	markers strings.Builder
	status  string
	kind    lineKind
}

// Interactive keeps one line per task and reprints all of them on DisplayProgress.
// Each healthy heartbeat check appends a marker to the task's progress string.
type Interactive struct {
	mu     sync.Mutex
	w      io.Writer
	clear  bool
	tasks  map[int]*taskLine
	order  []int
	styles map[lineKind]lipgloss.Style
}

// NewInteractive creates an interactive observer writing to w. clearScreen controls
// whether the surface is cleared before every repaint; disable it when w is not a terminal.
func NewInteractive(w io.Writer, clearScreen bool) *Interactive {
	r := lipgloss.NewRenderer(w)
	return &Interactive{
		w:     w,
		clear: clearScreen,
		tasks: make(map[int]*taskLine),
		styles: map[lineKind]lipgloss.Style{
			kindRunning: r.NewStyle().Foreground(lipgloss.Color("yellow")),
			kindWarning: r.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
			kindDone:    r.NewStyle().Foreground(lipgloss.Color("green")).Bold(true),
			kindFailed:  r.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
		},
	}
}

// line returns the task's line, creating it for ids never reported as started.
func (o *Interactive) line(id int) *taskLine {
	l, ok := o.tasks[id]
	if !ok {
		l = &taskLine{name: fmt.Sprintf("task %d", id)}
		o.tasks[id] = l
		o.order = append(o.order, id)
	}
	return l
}

func (o *Interactive) set(id int, kind lineKind, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.line(id)
	l.kind = kind
	l.status = status
}

func (o *Interactive) Started(id int, input any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.line(id)
	l.name = fmt.Sprintf("task %d (%s)", id, describe(input, maxInputWidth))
	l.kind = kindRunning
	l.status = "running"
}

func (o *Interactive) Completed(id int, result any) {
	o.set(id, kindDone, "completed")
}

func (o *Interactive) Failed(id int, err error) {
	o.set(id, kindFailed, fmt.Sprintf("failed: %v", err))
}

func (o *Interactive) Crashed(id int) {
	o.set(id, kindFailed, "crashed")
}

func (o *Interactive) CancellationAcknowledged(id int) {
	o.set(id, kindWarning, "cancelled")
}

func (o *Interactive) NoHeartbeat(id int) {
	o.set(id, kindWarning, "no heartbeat, cancelling")
}

func (o *Interactive) FailedToStop(id int) {
	o.set(id, kindFailed, "failed to stop, terminating")
}

func (o *Interactive) Heartbeat(id int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.line(id).markers.WriteString(heartbeatMarker)
}

// DisplayProgress repaints every task line.
func (o *Interactive) DisplayProgress() {
	o.mu.Lock()
	defer o.mu.Unlock()

	var b strings.Builder
	if o.clear {
		b.WriteString(clearSequence)
	}
	for _, id := range o.order {
		l := o.tasks[id]
		fmt.Fprintf(&b, "%s %s %s\n", l.name, l.markers.String(), o.styles[l.kind].Render(l.status))
	}
	_, _ = io.WriteString(o.w, b.String())
}

// Progress returns the progress markers recorded for a task.
func (o *Interactive) Progress(id int) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if l, ok := o.tasks[id]; ok {
		return l.markers.String()
	}
	return ""
}

// Status returns the latest status string of a task.
func (o *Interactive) Status(id int) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if l, ok := o.tasks[id]; ok {
		return l.status
	}
	return ""
}
