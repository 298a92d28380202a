// Package convergence observes running statistics across simulation
// checkpoints and decides when the outcome distribution has stabilized.
package convergence

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/Aidin1998/riskfolio/pkg/models"
)

// snapshot holds the statistics computed at one checkpoint.
type snapshot struct {
	mean        float64
	variance    float64
	percentiles map[float64]float64
}

// Monitor tracks mean, variance and percentile stability between checkpoints.
// A statistic is stable when its relative change falls below the tolerance;
// the run converges once all statistics are stable at two consecutive
// checkpoints. The monitor never alters the driver's iteration count.
type Monitor struct {
	tolerance   float64
	percentiles []float64

	prev         *snapshot
	last         *snapshot
	lastChanges  map[string]float64
	stableStreak int
	converged    bool
	convergedAt  *int
}

// NewMonitor creates a monitor with the given relative-change tolerance and
// tracked percentiles (expressed as 0-100).
func NewMonitor(tolerance float64, percentiles []float64) *Monitor {
	ps := make([]float64, len(percentiles))
	copy(ps, percentiles)
	sort.Float64s(ps)
	return &Monitor{
		tolerance:   tolerance,
		percentiles: ps,
		lastChanges: map[string]float64{},
	}
}

// Observe records a checkpoint over the running outcome series. iteration is
// the number of iterations completed so far.
func (m *Monitor) Observe(series []float64, iteration int) {
	cur := m.compute(series)
	defer func() {
		m.prev = m.last
		m.last = cur
	}()

	if m.last == nil {
		return
	}

	allStable := true
	record := func(name string, prev, now float64) {
		change := relativeChange(prev, now)
		m.lastChanges[name] = change
		if change > m.tolerance {
			allStable = false
		}
	}
	record("mean", m.last.mean, cur.mean)
	record("variance", m.last.variance, cur.variance)
	for _, p := range m.percentiles {
		record(percentileKey(p), m.last.percentiles[p], cur.percentiles[p])
	}

	if allStable {
		m.stableStreak++
	} else {
		m.stableStreak = 0
	}
	if !m.converged && m.stableStreak >= 2 {
		m.converged = true
		at := iteration
		m.convergedAt = &at
	}
}

// Converged reports whether stability held for two consecutive checkpoints.
func (m *Monitor) Converged() bool { return m.converged }

// Metrics builds the ConvergenceMetrics record for the results. Stability
// scores are 1 - min(1, relativeChange), so 1 means the statistic did not
// move at the final checkpoint.
func (m *Monitor) Metrics() models.ConvergenceMetrics {
	metrics := models.ConvergenceMetrics{
		MeanStability:       score(m.lastChanges["mean"]),
		VarianceStability:   score(m.lastChanges["variance"]),
		PercentileStability: make(map[string]float64, len(m.percentiles)),
		Converged:           m.converged,
	}
	for _, p := range m.percentiles {
		metrics.PercentileStability[percentileKey(p)] = score(m.lastChanges[percentileKey(p)])
	}
	if m.convergedAt != nil {
		at := *m.convergedAt
		metrics.IterationsToConvergence = &at
	}
	return metrics
}

func (m *Monitor) compute(series []float64) *snapshot {
	s := &snapshot{
		mean:        stat.Mean(series, nil),
		variance:    stat.Variance(series, nil),
		percentiles: make(map[float64]float64, len(m.percentiles)),
	}
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)
	for _, p := range m.percentiles {
		s.percentiles[p] = stat.Quantile(p/100, stat.Empirical, sorted, nil)
	}
	return s
}

func relativeChange(prev, now float64) float64 {
	denom := math.Abs(prev)
	if denom < 1e-12 {
		denom = 1e-12
	}
	return math.Abs(now-prev) / denom
}

func score(change float64) float64 {
	return 1 - math.Min(1, change)
}

func percentileKey(p float64) string {
	return "p" + strconv.FormatFloat(p, 'g', -1, 64)
}
