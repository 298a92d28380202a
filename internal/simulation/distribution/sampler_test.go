package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

func triangular(min, mode, max float64) models.ProbabilityDistribution {
	return models.ProbabilityDistribution{
		Type:       models.DistributionTriangular,
		Parameters: map[string]float64{"min": min, "mode": mode, "max": max},
	}
}

func normal(mean, std float64) models.ProbabilityDistribution {
	return models.ProbabilityDistribution{
		Type:       models.DistributionNormal,
		Parameters: map[string]float64{"mean": mean, "std_dev": std},
	}
}

func TestSampleDeterministicForFixedSeed(t *testing.T) {
	a, err := NewSampler(42).Sample(normal(1000, 200), 5000)
	require.NoError(t, err)
	b, err := NewSampler(42).Sample(normal(1000, 200), 5000)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must reproduce identical draws")

	c, err := NewSampler(43).Sample(normal(1000, 200), 5000)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different seeds must diverge")
}

func TestTriangularSamplesStayInSupport(t *testing.T) {
	draws, err := NewSampler(7).Sample(triangular(10, 20, 40), 20000)
	require.NoError(t, err)
	for _, v := range draws {
		require.GreaterOrEqual(t, v, 10.0)
		require.LessOrEqual(t, v, 40.0)
	}
}

func TestUniformSamplesStayInSupport(t *testing.T) {
	dist := models.ProbabilityDistribution{
		Type:       models.DistributionUniform,
		Parameters: map[string]float64{"min": -5, "max": 5},
	}
	draws, err := NewSampler(7).Sample(dist, 10000)
	require.NoError(t, err)
	for _, v := range draws {
		require.GreaterOrEqual(t, v, -5.0)
		require.LessOrEqual(t, v, 5.0)
	}
}

func TestSampleMeanConvergesToAnalyticMean(t *testing.T) {
	draws, err := NewSampler(42).Sample(normal(1000, 200), 100000)
	require.NoError(t, err)
	var sum float64
	for _, v := range draws {
		sum += v
	}
	mean := sum / float64(len(draws))
	assert.InDelta(t, 1000, mean, 5, "sample mean should approach the analytic mean")
}

func TestPERTSamplesStayInSupportAndSkew(t *testing.T) {
	dist := models.ProbabilityDistribution{
		Type:       models.DistributionPERT,
		Parameters: map[string]float64{"min": 0, "mode": 8, "max": 10},
	}
	draws, err := NewSampler(11).Sample(dist, 20000)
	require.NoError(t, err)
	var sum float64
	for _, v := range draws {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 10.0)
		sum += v
	}
	// PERT mean is (min + 4*mode + max) / 6.
	assert.InDelta(t, 7.0, sum/float64(len(draws)), 0.1)
}

func TestDiscreteSamplesOnlyDeclaredValues(t *testing.T) {
	dist := models.ProbabilityDistribution{
		Type: models.DistributionDiscrete,
		Outcomes: []models.DiscreteOutcome{
			{Value: 100, Probability: 0.5},
			{Value: 200, Probability: 0.3},
			{Value: 500, Probability: 0.2},
		},
	}
	draws, err := NewSampler(3).Sample(dist, 10000)
	require.NoError(t, err)
	for _, v := range draws {
		assert.Contains(t, []float64{100, 200, 500}, v)
	}
}

func TestValidateRejectsMalformedParameters(t *testing.T) {
	cases := []struct {
		name string
		dist models.ProbabilityDistribution
	}{
		{"triangular mode below min", triangular(10, 5, 20)},
		{"triangular min equal max", triangular(10, 10, 10)},
		{"normal zero std", normal(100, 0)},
		{"normal negative std", normal(100, -1)},
		{"normal missing mean", models.ProbabilityDistribution{
			Type:       models.DistributionNormal,
			Parameters: map[string]float64{"std_dev": 1},
		}},
		{"normal NaN mean", normal(math.NaN(), 1)},
		{"uniform inverted bounds", models.ProbabilityDistribution{
			Type:       models.DistributionUniform,
			Parameters: map[string]float64{"min": 5, "max": 1},
		}},
		{"lognormal non-positive sigma", models.ProbabilityDistribution{
			Type:       models.DistributionLogNormal,
			Parameters: map[string]float64{"mu": 0, "sigma": 0},
		}},
		{"discrete probabilities not summing to one", models.ProbabilityDistribution{
			Type: models.DistributionDiscrete,
			Outcomes: []models.DiscreteOutcome{
				{Value: 1, Probability: 0.4},
				{Value: 2, Probability: 0.4},
			},
		}},
		{"unknown type", models.ProbabilityDistribution{Type: "cauchy"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.dist)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "expected a validation error, got %v", err)

			// Fail fast: no draws may be produced from a malformed distribution.
			draws, err := NewSampler(1).Sample(tc.dist, 100)
			require.Error(t, err)
			assert.Nil(t, draws)
		})
	}
}

func TestQuantileMatchesSupportEdges(t *testing.T) {
	dist := triangular(10, 20, 40)
	low, err := Quantile(dist, 0.0001)
	require.NoError(t, err)
	high, err := Quantile(dist, 0.9999)
	require.NoError(t, err)
	assert.Greater(t, low, 9.9)
	assert.Less(t, high, 40.1)
	mid, err := Quantile(dist, 0.5)
	require.NoError(t, err)
	assert.Greater(t, mid, low)
	assert.Less(t, mid, high)
}

func TestMeanAnalytic(t *testing.T) {
	m, err := Mean(triangular(10, 20, 40))
	require.NoError(t, err)
	assert.InDelta(t, (10.0+20.0+40.0)/3, m, 1e-12)

	m, err = Mean(normal(1000, 200))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, m)
}
