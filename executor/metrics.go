package executor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/proctriage/triage/model"
)

// Metrics is an optional Prometheus sink for executed actions (spec §4.6/§6's per-action
// success/failure counts). A nil *Metrics is valid and simply records nothing -- most callers
// (tests, a one-shot dry run) have no registry to publish to.
type Metrics struct {
	attempts  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewMetrics registers the executor's counters and histogram against reg and returns the sink.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_executor_attempts_total",
			Help: "Recovery attempts by action, outcome, and failure category.",
		}, []string{"action", "outcome", "failure_category"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_executor_attempt_duration_seconds",
			Help:    "Wall-clock duration of a single recovery attempt.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
	reg.MustRegister(m.attempts, m.durations)
	return m
}

// Observe records one completed attempt. Safe to call on a nil *Metrics.
func (m *Metrics) Observe(action model.Action, attempt model.AttemptResult) {
	if m == nil {
		return
	}
	outcome := "failure"
	if attempt.Succeeded {
		outcome = "success"
	}
	m.attempts.WithLabelValues(action.String(), outcome, string(attempt.FailureReason)).Inc()
	m.durations.WithLabelValues(action.String()).Observe(float64(attempt.DurationMS) / 1000.0)
}
