package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/harrison/mender/internal/models"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	StrategyAttempts *prometheus.CounterVec
	StrategyDuration *prometheus.HistogramVec
	Runs             *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StrategyAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mender_strategy_attempts_total",
			Help: "Strategy invocations by outcome (fixed, failed, timeout).",
		}, []string{"strategy", "outcome"}),
		StrategyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mender_strategy_seconds",
			Help:    "Time spent in one strategy invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mender_fix_runs_total",
			Help: "Engine runs by result (fixed, exhausted, skipped, ignored) and error category.",
		}, []string{"result", "category"}),
	}
}

func (m *Metrics) observeStrategy(s models.FixStrategy, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.StrategyAttempts.WithLabelValues(string(s), outcome).Inc()
	m.StrategyDuration.WithLabelValues(string(s)).Observe(seconds)
}

func (m *Metrics) observeRun(result string, category models.Category) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result, string(category)).Inc()
}
