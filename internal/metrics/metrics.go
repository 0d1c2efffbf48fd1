// Package metrics exposes scheduling and conflict counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custody-schedule-backend/internal/model"
)

const namespace = "custody_scheduler"

// Recorder holds the service collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	operations         *prometheus.CounterVec
	durations          *prometheus.HistogramVec
	conflictsDetected  *prometheus.CounterVec
	conflictsRetired   prometheus.Counter
	transitions        *prometheus.CounterVec
	capacityRejections prometheus.Counter
	alerts             *prometheus.CounterVec
	sweeps             *prometheus.CounterVec
}

// New creates a recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		conflictsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_detected_total",
			Help:      "Newly created conflict records.",
		}, []string{"type", "severity"}),
		conflictsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_retired_total",
			Help:      "Conflict records retired because the overlap no longer holds.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_transitions_total",
			Help:      "Lifecycle transitions by target status.",
		}, []string{"status"}),
		capacityRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Slot reservations refused because the slot was full.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Push alerts by outcome.",
		}, []string{"result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Sweeper runs by outcome.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		r.operations,
		r.durations,
		r.conflictsDetected,
		r.conflictsRetired,
		r.transitions,
		r.capacityRejections,
		r.alerts,
		r.sweeps,
	)
	return r
}

// Observe records a service operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if r == nil || operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, outcome(success)).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ConflictsDetected counts newly created records.
func (r *Recorder) ConflictsDetected(conflicts []model.Conflict) {
	if r == nil {
		return
	}
	for _, c := range conflicts {
		r.conflictsDetected.WithLabelValues(string(c.Type), string(c.Severity)).Inc()
	}
}

// ConflictsRetired counts suppressed stale records.
func (r *Recorder) ConflictsRetired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.conflictsRetired.Add(float64(n))
}

// Transition counts a lifecycle move to status.
func (r *Recorder) Transition(status model.ConflictStatus) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(string(status)).Inc()
}

// CapacityRejected counts a refused slot reservation.
func (r *Recorder) CapacityRejected() {
	if r == nil {
		return
	}
	r.capacityRejections.Inc()
}

// AlertSent counts a push delivery attempt.
func (r *Recorder) AlertSent(success bool) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(outcome(success)).Inc()
}

// Sweep counts a sweeper run.
func (r *Recorder) Sweep(success bool) {
	if r == nil {
		return
	}
	r.sweeps.WithLabelValues(outcome(success)).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
