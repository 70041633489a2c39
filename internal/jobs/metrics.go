// Package jobmetrics instruments the ledger worker tasks.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job names used as metric labels.
const (
	JobSyncBatch   = "ledger_sync_batch"
	JobGLIntegrity = "gl_integrity"
)

// Metrics holds the worker collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	items       *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewMetrics registers the worker collectors on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koperasi",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Worker task executions by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "koperasi",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Worker task duration.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koperasi",
			Subsystem: "jobs",
			Name:      "items_total",
			Help:      "Transactions handled by batch tasks by outcome.",
		}, []string{"job", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "koperasi",
			Subsystem: "jobs",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		now: time.Now,
	}
	if registerer != nil {
		registerer.MustRegister(m.runs, m.duration, m.items, m.lastSuccess)
	}
	return m
}

// Start returns a func that records the run of job when called with its
// final error. The error is passed through.
//
//	done := m.Start(JobGLIntegrity)
//	return done(run())
func (m *Metrics) Start(job string) func(error) error {
	if m == nil {
		return func(err error) error { return err }
	}
	started := m.now()
	return func(err error) error {
		finished := m.now()
		m.duration.WithLabelValues(job).Observe(finished.Sub(started).Seconds())
		if err != nil {
			m.runs.WithLabelValues(job, "error").Inc()
			return err
		}
		m.runs.WithLabelValues(job, "ok").Inc()
		m.lastSuccess.WithLabelValues(job).Set(float64(finished.Unix()))
		return nil
	}
}

// CountItems adds the per-outcome counts of one batch run. Zero counts are
// skipped so unused outcomes do not appear as series.
func (m *Metrics) CountItems(job string, counts map[string]int) {
	if m == nil {
		return
	}
	for outcome, n := range counts {
		if n > 0 {
			m.items.WithLabelValues(job, outcome).Add(float64(n))
		}
	}
}
