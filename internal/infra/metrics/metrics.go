// Package metrics exposes reminder scheduler metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"target_audit_reminder/internal/app"
)

type Metrics struct {
	cycles             prometheus.Counter
	cycleDuration      prometheus.Histogram
	decisions          *prometheus.CounterVec
	auditorFailures    *prometheus.CounterVec
	dispatchFailures   *prometheus.CounterVec
	listFailuresStreak prometheus.Gauge
}

var _ app.Recorder = (*Metrics)(nil)

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "reminder_cycles_total",
			Help: "number of completed evaluation cycles",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_cycle_duration_seconds",
			Help:    "wall time of one evaluation cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_decisions_total",
			Help: "per-auditor decisions by outcome",
		}, []string{"outcome"}),
		auditorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_auditor_failures_total",
			Help: "auditors whose evaluation failed, by failure kind",
		}, []string{"kind"}),
		dispatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_dispatch_failures_total",
			Help: "failed deliveries by channel",
		}, []string{"channel"}),
		listFailuresStreak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reminder_candidate_list_failures",
			Help: "consecutive failures to list reminder candidates",
		}),
	}
}

func (m *Metrics) CycleCompleted(d time.Duration) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) DecisionMade(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuditorFailed(kind string) {
	m.auditorFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) DispatchFailed(channel string) {
	m.dispatchFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) CandidateListFailures(n int) {
	m.listFailuresStreak.Set(float64(n))
}
