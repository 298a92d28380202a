package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/riskfolio/internal/config"
	"github.com/Aidin1998/riskfolio/internal/simulation"
	"github.com/Aidin1998/riskfolio/internal/simulation/engine"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		MinIterations:      10000,
		MaxIterations:      1000000,
		CheckpointFraction: 0.1,
		StabilityTolerance: 0.005,
		TrackedPercentiles: []float64{10, 50, 90},
		FastBudget:         5e9,
		StandardBudget:     30e9,
	}
}

func normalRisk(id string, mean, std float64) models.Risk {
	return models.Risk{
		ID:     id,
		Name:   id,
		Impact: models.ImpactCost,
		Distribution: models.ProbabilityDistribution{
			Type:       models.DistributionNormal,
			Parameters: map[string]float64{"mean": mean, "std_dev": std},
		},
	}
}

func run(t *testing.T, risks []models.Risk, iterations int, seedValue int64) *models.SimulationResults {
	t.Helper()
	driver := engine.NewDriver(zap.NewNop(), engineConfig())
	results, err := driver.Run(context.Background(), &simulation.Request{
		Risks:      risks,
		Iterations: iterations,
		Seed:       &seedValue,
	}, nil)
	require.NoError(t, err)
	return results
}

func TestPercentilesAreMonotonic(t *testing.T) {
	results := run(t, []models.Risk{normalRisk("r1", 1000, 200)}, 10000, 42)

	summary, err := Percentiles(results, models.ImpactCost, []float64{10, 50, 90})
	require.NoError(t, err)

	p10, p50, p90 := summary.Percentiles["p10"], summary.Percentiles["p50"], summary.Percentiles["p90"]
	assert.LessOrEqual(t, p10, p50)
	assert.LessOrEqual(t, p50, p90)
	assert.InDelta(t, summary.Median, p50, 1e-9)
	assert.InDelta(t, 1000, summary.Mean, 50)
}

func TestConfidenceIntervalWidthShrinksWithIterations(t *testing.T) {
	risks := []models.Risk{normalRisk("r1", 1000, 200)}
	small := run(t, risks, 10000, 42)
	large := run(t, risks, 100000, 42)

	smallCI, err := ConfidenceIntervals(small, models.ImpactCost, []float64{0.95})
	require.NoError(t, err)
	largeCI, err := ConfidenceIntervals(large, models.ImpactCost, []float64{0.95})
	require.NoError(t, err)

	smallWidth := smallCI["0.95"].High - smallCI["0.95"].Low
	largeWidth := largeCI["0.95"].High - largeCI["0.95"].Low
	assert.LessOrEqual(t, largeWidth, smallWidth,
		"interval width must not grow with iteration count")

	// Each interval brackets the true mean.
	assert.Less(t, smallCI["0.95"].Low, 1000.0)
	assert.Greater(t, smallCI["0.95"].High, 1000.0)
}

func TestConfidenceIntervalsRejectInvalidLevels(t *testing.T) {
	results := run(t, []models.Risk{normalRisk("r1", 1000, 200)}, 10000, 42)
	_, err := ConfidenceIntervals(results, models.ImpactCost, []float64{1.5})
	require.Error(t, err)
}

func TestTopRiskContributorsRankDescending(t *testing.T) {
	risks := []models.Risk{
		normalRisk("small", 100, 10),
		normalRisk("large", 100, 500),
		normalRisk("medium", 100, 80),
	}
	results := run(t, risks, 20000, 42)

	ranked, err := TopRiskContributors(results, risks, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "large", ranked[0].RiskID)
	assert.Equal(t, "medium", ranked[1].RiskID)
	assert.Equal(t, "small", ranked[2].RiskID)
	for i := 1; i < len(ranked); i++ {
		assert.Greater(t,
			absf(ranked[i-1].Covariance), absf(ranked[i].Covariance),
			"ranking must be strictly descending by contribution magnitude")
	}

	top1, err := TopRiskContributors(results, risks, 1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, "large", top1[0].RiskID)
}

func TestCompareScenariosAntisymmetry(t *testing.T) {
	a := run(t, []models.Risk{normalRisk("r1", 1000, 200)}, 10000, 42)
	b := run(t, []models.Risk{normalRisk("r1", 1200, 200)}, 10000, 43)

	ab, err := CompareScenarios(a, b, models.ImpactCost)
	require.NoError(t, err)
	ba, err := CompareScenarios(b, a, models.ImpactCost)
	require.NoError(t, err)

	assert.InDelta(t, -ba.MeanDifference, ab.MeanDifference, 1e-9)
	assert.InDelta(t, -ba.EffectSize, ab.EffectSize, 1e-9)
	assert.InDelta(t, ba.PValue, ab.PValue, 1e-9)

	// A 200-unit shift at std 200 is unmistakable at n=10000.
	assert.Less(t, ab.PValue, 0.001)
	assert.True(t, ab.Significant)
	assert.Negative(t, ab.MeanDifference)
}

func TestCDFIsMonotonic(t *testing.T) {
	results := run(t, []models.Risk{normalRisk("r1", 1000, 200)}, 10000, 42)
	points, err := CDF(results, models.ImpactCost, 100)
	require.NoError(t, err)
	require.NotEmpty(t, points)

	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].Value, points[i-1].Value)
		assert.Greater(t, points[i].Probability, points[i-1].Probability)
	}
	last := points[len(points)-1]
	assert.InDelta(t, 1.0, last.Probability, 1e-9)
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
