// Package metrics exposes prometheus instrumentation for the curation gate.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "curation"

// Metrics groups every collector the gate updates.
type Metrics struct {
	submissions      *prometheus.CounterVec
	duplicates       *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	analysisSources  *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	rollbacks        prometheus.Counter
	retention        *prometheus.CounterVec
	frequencySweeps  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions by outcome (accepted, duplicate, invalid, error).",
		}, []string{"outcome"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_verdicts_total",
			Help:      "Positive duplicate verdicts by detection tier.",
		}, []string{"tier"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decision engine results by action.",
		}, []string{"action"}),
		analysisSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_source_total",
			Help:      "Auto analyses by verdict source (curator, fallback, synthetic).",
		}, []string{"source"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one auto analysis.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_rollbacks_total",
			Help:      "Approvals rolled back after an indexing failure.",
		}),
		retention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Items removed by retention cleanup, by rule.",
		}, []string{"rule"}),
		frequencySweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frequency_sweep_records_total",
			Help:      "Frequency records touched by sweeps (decayed, purged).",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.submissions, m.duplicates, m.decisions, m.analysisSources,
			m.analysisDuration, m.rollbacks, m.retention, m.frequencySweeps,
		)
	}
	return m
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Duplicate(tier string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(tier).Inc()
}

func (m *Metrics) Decision(action string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action).Inc()
}

// Analysis records one completed auto analysis.
func (m *Metrics) Analysis(source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analysisSources.WithLabelValues(source).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}

// Retention adds n deletions under rule ("expired" or "ceiling").
func (m *Metrics) Retention(rule string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retention.WithLabelValues(rule).Add(float64(n))
}

// FrequencySweep records decayed and purged counts of one sweep.
func (m *Metrics) FrequencySweep(decayed, purged int) {
	if m == nil {
		return
	}
	m.frequencySweeps.WithLabelValues("decayed").Add(float64(decayed))
	m.frequencySweeps.WithLabelValues("purged").Add(float64(purged))
}
