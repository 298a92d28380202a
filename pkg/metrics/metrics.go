package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RunsTotal counts completed simulation runs by terminal status
// (completed/failed/cancelled/non_converged).
var RunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskfolio_simulation_runs_total",
		Help: "Total number of simulation runs by terminal status",
	},
	[]string{"status"},
)

// RunDuration records wall-clock latency for full simulation runs.
var RunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "riskfolio_simulation_duration_seconds",
		Help:    "Wall-clock time in seconds for a full simulation run",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
)

// RunIterations records the iteration count distribution across runs.
var RunIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "riskfolio_simulation_iterations",
		Help:    "Iteration counts of simulation runs",
		Buckets: prometheus.ExponentialBuckets(10000, 2, 8),
	},
)

// ActiveRuns tracks simulations currently executing on the worker pool.
var ActiveRuns = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "riskfolio_simulation_active_runs",
		Help: "Number of simulation runs currently executing",
	},
)

// Result cache collaborator metrics
var (
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskfolio_result_cache_hits_total",
			Help: "Simulation requests served from the result cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskfolio_result_cache_misses_total",
			Help: "Simulation requests that missed the result cache",
		},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, RunDuration, RunIterations)
	prometheus.MustRegister(ActiveRuns, CacheHits, CacheMisses)
}
