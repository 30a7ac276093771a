// Package metrics provides the Prometheus collectors for the arena.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricVotesRecordedTotal   = "arena_votes_recorded_total"
	MetricVotesRejectedTotal   = "arena_votes_rejected_total"
	MetricSessionsActive       = "arena_sessions_active"
	MetricSessionsSweptTotal   = "arena_sessions_swept_total"
	MetricSynthesisDuration    = "arena_synthesis_duration_seconds"
	MetricSynthesisErrorsTotal = "arena_synthesis_errors_total"
)

// Metrics holds every arena collector. All operations are thread-safe and
// every method tolerates a nil receiver, so components can run without metrics.
type Metrics struct {
	votesRecorded     *prometheus.CounterVec
	votesRejected     *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	sessionsSwept     prometheus.Counter
	synthesisDuration *prometheus.HistogramVec
	synthesisErrors   *prometheus.CounterVec
}

// New creates the collectors. They are not registered; call Register.
func New() *Metrics {
	return &Metrics{
		votesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricVotesRecordedTotal,
				Help: "Votes committed to the ledger by category",
			},
			[]string{"category"},
		),
		votesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricVotesRejectedTotal,
				Help: "Vote submissions rejected by reason kind",
			},
			[]string{"reason"},
		),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSessionsActive,
			Help: "Comparison sessions currently held in memory",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSessionsSweptTotal,
			Help: "Comparison sessions destroyed by the expiry sweep",
		}),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSynthesisDuration,
				Help:    "Time spent generating one artifact by candidate",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"candidate"},
		),
		synthesisErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSynthesisErrorsTotal,
				Help: "Failed artifact generations by candidate",
			},
			[]string{"candidate"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.votesRecorded,
		m.votesRejected,
		m.sessionsActive,
		m.sessionsSwept,
		m.synthesisDuration,
		m.synthesisErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) VoteRecorded(category string) {
	if m == nil {
		return
	}
	m.votesRecorded.WithLabelValues(category).Inc()
}

func (m *Metrics) VoteRejected(reason string) {
	if m == nil {
		return
	}
	m.votesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) SessionsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

func (m *Metrics) ObserveSynthesis(candidate string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.synthesisDuration.WithLabelValues(candidate).Observe(seconds)
	if failed {
		m.synthesisErrors.WithLabelValues(candidate).Inc()
	}
}
