// Package telemetry exposes Prometheus metrics for optimization runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/piwi3910/PanelCut/internal/model"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "panelcut"

	StrategyLabel = "strategy"
	ReasonLabel   = "reason"
	ResultLabel   = "result"
)

// Metrics records optimizer activity. It satisfies engine.Recorder.
type Metrics struct {
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	efficiency     *prometheus.HistogramVec
	panelsOpened   *prometheus.CounterVec
	piecesPlaced   *prometheus.CounterVec
	piecesUnplaced *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "optimization_runs_total",
				Help:      "Total number of completed optimization runs",
			},
			[]string{StrategyLabel},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "optimization_duration_seconds",
				Help:      "Wall-clock duration of the allocator in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{StrategyLabel},
		),
		efficiency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "optimization_efficiency_percent",
				Help:      "Material efficiency of each run in percent",
				Buckets:   prometheus.LinearBuckets(10, 10, 9),
			},
			[]string{StrategyLabel},
		),
		panelsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "panels_opened_total",
				Help:      "Total number of panel instances opened",
			},
			[]string{StrategyLabel},
		),
		piecesPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pieces_placed_total",
				Help:      "Total number of piece units placed",
			},
			[]string{StrategyLabel},
		),
		piecesUnplaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pieces_unplaced_total",
				Help:      "Total number of piece units left unplaced, by reason",
			},
			[]string{StrategyLabel, ReasonLabel},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by outcome",
			},
			[]string{ResultLabel},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.runs,
			m.runDuration,
			m.efficiency,
			m.panelsOpened,
			m.piecesPlaced,
			m.piecesUnplaced,
			m.cacheLookups,
		)
	}
	return m
}

// ObserveRun records the outcome of one optimization run.
func (m *Metrics) ObserveRun(result model.OptimizationResult, elapsed time.Duration) {
	s := string(result.Strategy)
	m.runs.WithLabelValues(s).Inc()
	m.runDuration.WithLabelValues(s).Observe(elapsed.Seconds())
	m.panelsOpened.WithLabelValues(s).Add(float64(len(result.CuttingPlans)))
	m.piecesPlaced.WithLabelValues(s).Add(float64(result.PlacedCount()))
	for reason, n := range result.UnplacedByReason() {
		m.piecesUnplaced.WithLabelValues(s, string(reason)).Add(float64(n))
	}
	if len(result.CuttingPlans) > 0 {
		m.efficiency.WithLabelValues(s).Observe(result.Efficiency)
	}
}

// CacheLookup counts a result cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}
