// Package analysis computes derived statistics over completed simulation
// results: percentiles, confidence intervals, risk-contribution rankings and
// cross-scenario comparisons. Every function is pure over an immutable
// results record.
package analysis

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// PercentileSummary reports the central tendency and requested percentiles of
// one outcome axis. Percentile keys are "p10"-style labels.
type PercentileSummary struct {
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contribution ranks one risk's share of total outcome variance.
type Contribution struct {
	RiskID string `json:"risk_id"`
	// Covariance of the risk's contribution series with its axis total.
	Covariance float64 `json:"covariance"`
	// Share is Covariance over the axis variance; shares across risks on
	// one axis sum to approximately 1.
	Share float64 `json:"share"`
}

// Comparison is the statistical comparison of two scenarios on one axis.
type Comparison struct {
	MeanDifference float64 `json:"mean_difference"`
	TStatistic     float64 `json:"t_statistic"`
	PValue         float64 `json:"p_value"`
	EffectSize     float64 `json:"effect_size"`
	Significant    bool    `json:"significant"`
}

// CDFPoint is one step of an empirical cumulative distribution, consumed by
// the chart collaborator.
type CDFPoint struct {
	Value       float64 `json:"value"`
	Probability float64 `json:"probability"`
}

func axisSeries(res *models.SimulationResults, axis models.ImpactType) ([]float64, error) {
	if res == nil || res.Iterations == 0 {
		return nil, errors.New(errors.KindValidation, "results are empty")
	}
	switch axis {
	case models.ImpactCost:
		return res.CostOutcomes, nil
	case models.ImpactSchedule:
		return res.ScheduleOutcomes, nil
	}
	return nil, errors.Validation("outcome_axis", "unknown outcome axis")
}

// Percentiles computes the mean, median and the requested percentiles
// (0-100) of the given outcome axis.
func Percentiles(res *models.SimulationResults, axis models.ImpactType, ps []float64) (*PercentileSummary, error) {
	series, err := axisSeries(res, axis)
	if err != nil {
		return nil, err
	}
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)

	summary := &PercentileSummary{
		Mean:        stat.Mean(series, nil),
		Median:      stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Percentiles: make(map[string]float64, len(ps)),
	}
	for _, p := range ps {
		if p < 0 || p > 100 {
			return nil, errors.Validation("percentiles", "percentiles must be in [0, 100]")
		}
		summary.Percentiles[percentileLabel(p)] = stat.Quantile(p/100, stat.Empirical, sorted, nil)
	}
	return summary, nil
}

// ConfidenceIntervals computes two-sided intervals for the axis mean at each
// requested level (e.g. 0.90, 0.95) via the normal approximation. Interval
// width shrinks as 1/sqrt(n) for a fixed level. Map keys are the levels
// formatted as decimals ("0.95").
func ConfidenceIntervals(res *models.SimulationResults, axis models.ImpactType, levels []float64) (map[string]Interval, error) {
	series, err := axisSeries(res, axis)
	if err != nil {
		return nil, err
	}
	mean := stat.Mean(series, nil)
	stderr := stat.StdDev(series, nil) / math.Sqrt(float64(len(series)))

	unit := distuv.Normal{Mu: 0, Sigma: 1}
	out := make(map[string]Interval, len(levels))
	for _, level := range levels {
		if level <= 0 || level >= 1 {
			return nil, errors.Validation("levels", "confidence levels must be in (0, 1)")
		}
		z := unit.Quantile(0.5 + level/2)
		out[levelLabel(level)] = Interval{Low: mean - z*stderr, High: mean + z*stderr}
	}
	return out, nil
}

func percentileLabel(p float64) string {
	return "p" + strconv.FormatFloat(p, 'g', -1, 64)
}

func levelLabel(level float64) string {
	return strconv.FormatFloat(level, 'g', -1, 64)
}

// TopRiskContributors ranks risks by the magnitude of their covariance
// contribution to their axis's total outcome variance, descending. This is
// the tornado-diagram data source. topN <= 0 returns all risks.
func TopRiskContributors(res *models.SimulationResults, risks []models.Risk, topN int) ([]Contribution, error) {
	if res == nil || len(res.RiskContributions) == 0 {
		return nil, errors.New(errors.KindValidation, "results carry no risk contributions")
	}

	axisVar := map[models.ImpactType]float64{
		models.ImpactCost:     stat.Variance(res.CostOutcomes, nil),
		models.ImpactSchedule: stat.Variance(res.ScheduleOutcomes, nil),
	}

	contributions := make([]Contribution, 0, len(risks))
	for _, r := range risks {
		series, ok := res.RiskContributions[r.ID]
		if !ok {
			continue
		}
		total, err := axisSeries(res, r.Impact)
		if err != nil {
			return nil, err
		}
		cov := stat.Covariance(series, total, nil)
		share := 0.0
		if v := axisVar[r.Impact]; v > 0 {
			share = cov / v
		}
		contributions = append(contributions, Contribution{RiskID: r.ID, Covariance: cov, Share: share})
	}

	sort.Slice(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].Covariance) > math.Abs(contributions[j].Covariance)
	})
	if topN > 0 && topN < len(contributions) {
		contributions = contributions[:topN]
	}
	return contributions, nil
}

// CompareScenarios compares two completed runs on one axis with a Welch
// two-sample t-test for significance and Cohen's d for effect size. Swapping
// the arguments negates the mean difference and the effect size.
func CompareScenarios(a, b *models.SimulationResults, axis models.ImpactType) (*Comparison, error) {
	sa, err := axisSeries(a, axis)
	if err != nil {
		return nil, err
	}
	sb, err := axisSeries(b, axis)
	if err != nil {
		return nil, err
	}

	meanA, meanB := stat.Mean(sa, nil), stat.Mean(sb, nil)
	varA, varB := stat.Variance(sa, nil), stat.Variance(sb, nil)
	nA, nB := float64(len(sa)), float64(len(sb))

	diff := meanA - meanB
	se := math.Sqrt(varA/nA + varB/nB)

	cmp := &Comparison{MeanDifference: diff}
	if se > 0 {
		cmp.TStatistic = diff / se
		// Welch-Satterthwaite degrees of freedom.
		df := math.Pow(varA/nA+varB/nB, 2) /
			(math.Pow(varA/nA, 2)/(nA-1) + math.Pow(varB/nB, 2)/(nB-1))
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		cmp.PValue = 2 * (1 - tDist.CDF(math.Abs(cmp.TStatistic)))
	} else {
		cmp.PValue = 1
	}

	pooled := math.Sqrt((varA + varB) / 2)
	if pooled > 0 {
		cmp.EffectSize = diff / pooled
	}
	cmp.Significant = cmp.PValue < 0.05
	return cmp, nil
}

// CDF returns the empirical cumulative distribution of one axis, downsampled
// to at most points steps for charting. points <= 0 keeps every step.
func CDF(res *models.SimulationResults, axis models.ImpactType, points int) ([]CDFPoint, error) {
	series, err := axisSeries(res, axis)
	if err != nil {
		return nil, err
	}
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)

	n := len(sorted)
	step := 1
	if points > 0 && n > points {
		step = n / points
	}
	out := make([]CDFPoint, 0, n/step+1)
	for i := step - 1; i < n; i += step {
		out = append(out, CDFPoint{
			Value:       sorted[i],
			Probability: float64(i+1) / float64(n),
		})
	}
	return out, nil
}
