package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values of taskwatch_tasks_finished_total.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCrashed   = "crashed"
	OutcomeCancelled = "cancelled"
)

// Metrics exports run lifecycle counters to Prometheus.
type Metrics struct {
	started       prometheus.Counter
	finished      *prometheus.CounterVec
	running       prometheus.Gauge
	cancellations *prometheus.CounterVec
	heartbeatAge  prometheus.Histogram

	mu        sync.Mutex
	cancelled map[int]bool // ids with a cooperative cancel counted
	forced    map[int]bool // ids with a forced cancel counted
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskwatch_tasks_started_total",
			Help: "Total tasks dispatched",
		}),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskwatch_tasks_finished_total",
				Help: "Total tasks that reached a terminal outcome",
			},
			[]string{"outcome"},
		),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskwatch_tasks_running",
			Help: "Tasks currently dispatched and not yet resolved",
		}),
		cancellations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskwatch_cancellations_total",
				Help: "Cancellations issued for tasks that stopped sending heartbeats",
			},
			[]string{"kind"}, // "cooperative", "forced"
		),
		heartbeatAge: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskwatch_heartbeat_age_seconds",
			Help:    "Time since the last heartbeat at each liveness check",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		cancelled: make(map[int]bool),
		forced:    make(map[int]bool),
	}

	for _, c := range []prometheus.Collector{m.started, m.finished, m.running, m.cancellations, m.heartbeatAge} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Started(id int, input any) {
	m.started.Inc()
	m.running.Inc()
}

func (m *Metrics) finish(outcome string) {
	m.finished.WithLabelValues(outcome).Inc()
	m.running.Dec()
}

func (m *Metrics) Completed(id int, result any) { m.finish(OutcomeCompleted) }

func (m *Metrics) Failed(id int, err error) { m.finish(OutcomeFailed) }

func (m *Metrics) Crashed(id int) { m.finish(OutcomeCrashed) }

func (m *Metrics) CancellationAcknowledged(id int) { m.finish(OutcomeCancelled) }

func (m *Metrics) NoHeartbeat(id int) {
	m.countOnce(m.cancelled, id, "cooperative")
}

func (m *Metrics) FailedToStop(id int) {
	m.countOnce(m.forced, id, "forced")
}

func (m *Metrics) countOnce(seen map[int]bool, id int, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seen[id] {
		return
	}
	seen[id] = true
	m.cancellations.WithLabelValues(kind).Inc()
}

func (m *Metrics) Heartbeat(id int, elapsed time.Duration) {
	m.heartbeatAge.Observe(elapsed.Seconds())
}

func (m *Metrics) DisplayProgress() {}
