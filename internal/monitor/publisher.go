package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/taskwatch/internal/events"
)

// Publisher forwards notifications to an event bus and publishes a RunProgressEvent
// on every DisplayProgress. The TUI consumes these events.
type Publisher struct {
	bus *events.EventBus

	mu       sync.Mutex
	progress events.RunProgressEvent
	stalled  map[int]bool
}

// NewPublisher creates an observer publishing to bus.
func NewPublisher(bus *events.EventBus) *Publisher {
	return &Publisher{
		bus:     bus,
		stalled: make(map[int]bool),
	}
}

func (p *Publisher) Started(id int, input any) {
	p.update(func(pr *events.RunProgressEvent) {
		pr.Started++
		pr.Running++
	})
	p.bus.Publish(events.TopicTask, events.TaskStartedEvent{ID: id, Input: describe(input, 256), Timestamp: time.Now()})
}

func (p *Publisher) Completed(id int, result any) {
	p.terminal(id, func(pr *events.RunProgressEvent) { pr.Completed++ })
	p.bus.Publish(events.TopicTask, events.TaskCompletedEvent{ID: id, Result: fmt.Sprint(result), Timestamp: time.Now()})
}

func (p *Publisher) Failed(id int, err error) {
	p.terminal(id, func(pr *events.RunProgressEvent) { pr.Failed++ })
	p.bus.Publish(events.TopicTask, events.TaskFailedEvent{ID: id, Err: err, Timestamp: time.Now()})
}

func (p *Publisher) Crashed(id int) {
	p.terminal(id, func(pr *events.RunProgressEvent) { pr.Failed++ })
	p.bus.Publish(events.TopicTask, events.TaskCrashedEvent{ID: id, Timestamp: time.Now()})
}

func (p *Publisher) CancellationAcknowledged(id int) {
	p.terminal(id, func(pr *events.RunProgressEvent) { pr.Cancelled++ })
	p.bus.Publish(events.TopicTask, events.TaskCancelledEvent{ID: id, Timestamp: time.Now()})
}

func (p *Publisher) NoHeartbeat(id int) {
	p.markStalled(id)
	p.bus.Publish(events.TopicTask, events.TaskStalledEvent{ID: id, Timestamp: time.Now()})
}

func (p *Publisher) FailedToStop(id int) {
	p.markStalled(id)
	p.bus.Publish(events.TopicTask, events.TaskUnresponsiveEvent{ID: id, Timestamp: time.Now()})
}

func (p *Publisher) Heartbeat(id int, elapsed time.Duration) {
	p.bus.Publish(events.TopicTask, events.TaskHeartbeatEvent{ID: id, Elapsed: elapsed, Timestamp: time.Now()})
}

// DisplayProgress publishes the current counts.
func (p *Publisher) DisplayProgress() {
	p.mu.Lock()
	progress := p.progress
	progress.Stalled = len(p.stalled)
	p.mu.Unlock()

	progress.Timestamp = time.Now()
	p.bus.Publish(events.TopicRun, progress)
}

func (p *Publisher) update(fn func(*events.RunProgressEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.progress)
}

func (p *Publisher) terminal(id int, fn func(*events.RunProgressEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stalled, id)
	p.progress.Running--
	fn(&p.progress)
}

func (p *Publisher) markStalled(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stalled[id] = true
}
