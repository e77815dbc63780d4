package metrics

import (
	"time"

	prometheus "github.com/prometheus/client_golang/prometheus"
)

const namespace = "desktop_agent"

// Metrics exposes Prometheus collectors for actions and tasks. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	actionsTotal    *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	clampsTotal     *prometheus.CounterVec
	iterationsTotal prometheus.Counter
	tasksTotal      *prometheus.CounterVec
	recoveriesTotal prometheus.Counter
	tasksActive     prometheus.Gauge
}

// New registers the collectors with reg and returns them
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "actions_total",
			Help:      "Executed actions by type and outcome.",
		}, []string{"type", "success"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "action_duration_seconds",
			Help:      "Wall time spent executing an action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		clampsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "coordinate_clamps_total",
			Help:      "Coordinates clamped into the vision canvas or the logical screen.",
		}, []string{"space"}),
		iterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "iterations_total",
			Help:      "Model round trips across all tasks.",
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tasks_total",
			Help:      "Finished tasks by terminal state.",
		}, []string{"state"}),
		recoveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "recovery_dismissals_total",
			Help:      "Dismiss keys sent because the model reported a wrong UI surface.",
		}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tasks_active",
			Help:      "Tasks currently running.",
		}),
	}

	collectors := []prometheus.Collector{
		m.actionsTotal, m.actionDuration, m.clampsTotal,
		m.iterationsTotal, m.tasksTotal, m.recoveriesTotal, m.tasksActive,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveAction records one executed action
func (m *Metrics) ObserveAction(actionType string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "false"
	if success {
		outcome = "true"
	}
	m.actionsTotal.WithLabelValues(actionType, outcome).Inc()
	m.actionDuration.WithLabelValues(actionType).Observe(d.Seconds())
}

// CoordinateClamped records a clamp in "vision" or "logical" space
func (m *Metrics) CoordinateClamped(space string) {
	if m == nil {
		return
	}
	m.clampsTotal.WithLabelValues(space).Inc()
}

// IterationStarted records one model round trip
func (m *Metrics) IterationStarted() {
	if m == nil {
		return
	}
	m.iterationsTotal.Inc()
}

// RecoveryDismissed records one heuristic dismiss
func (m *Metrics) RecoveryDismissed() {
	if m == nil {
		return
	}
	m.recoveriesTotal.Inc()
}

// TaskStarted marks a task as running
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksActive.Inc()
}

// TaskFinished records the terminal state of a task
func (m *Metrics) TaskFinished(state string) {
	if m == nil {
		return
	}
	m.tasksActive.Dec()
	m.tasksTotal.WithLabelValues(state).Inc()
}
