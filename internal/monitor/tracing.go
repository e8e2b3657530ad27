package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing records one span per task, from dispatch to terminal outcome.
// Cancellation escalations are recorded as span events.
type Tracing struct {
	ctx    context.Context
	tracer trace.Tracer

	mu      sync.Mutex
	spans   map[int]trace.Span
	stalled map[int]bool
	killed  map[int]bool
}

// NewTracing creates a tracing observer. Spans are children of any span in ctx.
func NewTracing(ctx context.Context, tracer trace.Tracer) *Tracing {
	return &Tracing{
		ctx:     ctx,
		tracer:  tracer,
		spans:   make(map[int]trace.Span),
		stalled: make(map[int]bool),
		killed:  make(map[int]bool),
	}
}

func (t *Tracing) Started(id int, input any) {
	_, span := t.tracer.Start(t.ctx, fmt.Sprintf("task %d", id),
		trace.WithAttributes(
			attribute.Int("task.id", id),
			attribute.String("task.input", describe(input, 256)),
		),
	)

	t.mu.Lock()
	t.spans[id] = span
	t.mu.Unlock()
}

// end finishes the task's span with the given outcome.
func (t *Tracing) end(id int, outcome string, err error) {
	t.mu.Lock()
	span, ok := t.spans[id]
	delete(t.spans, id)
	delete(t.stalled, id)
	delete(t.killed, id)
	t.mu.Unlock()

	if !ok {
		return
	}

	span.SetAttributes(attribute.String("task.outcome", outcome))
	if outcome == OutcomeCompleted {
		span.SetStatus(codes.Ok, "")
	} else {
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

func (t *Tracing) Completed(id int, result any) { t.end(id, OutcomeCompleted, nil) }

func (t *Tracing) Failed(id int, err error) { t.end(id, OutcomeFailed, err) }

func (t *Tracing) Crashed(id int) { t.end(id, OutcomeCrashed, nil) }

func (t *Tracing) CancellationAcknowledged(id int) { t.end(id, OutcomeCancelled, nil) }

func (t *Tracing) NoHeartbeat(id int) {
	t.eventOnce(t.stalled, id, "cancel requested")
}

func (t *Tracing) FailedToStop(id int) {
	t.eventOnce(t.killed, id, "force cancel")
}

func (t *Tracing) eventOnce(seen map[int]bool, id int, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.spans[id]
	if !ok || seen[id] {
		return
	}
	seen[id] = true
	span.AddEvent(name)
}

func (t *Tracing) Heartbeat(id int, elapsed time.Duration) {}

func (t *Tracing) DisplayProgress() {}
