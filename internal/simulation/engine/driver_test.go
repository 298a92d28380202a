package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Aidin1998/riskfolio/internal/config"
	"github.com/Aidin1998/riskfolio/internal/simulation"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

func testEngineConfig() config.EngineConfig {
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

func normalRisk(id string, mean, std float64, impact models.ImpactType) models.Risk {
	return models.Risk{
		ID:     id,
		Name:   id,
		Impact: impact,
		Distribution: models.ProbabilityDistribution{
			Type:       models.DistributionNormal,
			Parameters: map[string]float64{"mean": mean, "std_dev": std},
		},
	}
}

func seed(v int64) *int64 { return &v }

func TestRunSingleNormalRiskEndToEnd(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	req := &simulation.Request{
		Risks:      []models.Risk{normalRisk("r1", 1000, 200, models.ImpactCost)},
		Iterations: 10000,
		Seed:       seed(42),
	}

	results, err := driver.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Len(t, results.CostOutcomes, 10000)
	assert.Len(t, results.ScheduleOutcomes, 10000)
	require.Contains(t, results.RiskContributions, "r1")
	assert.Len(t, results.RiskContributions["r1"], 10000)

	mean := stat.Mean(results.CostOutcomes, nil)
	assert.Greater(t, mean, 950.0)
	assert.Less(t, mean, 1050.0)

	// Schedule axis stays untouched by a cost-impact risk.
	for _, v := range results.ScheduleOutcomes[:100] {
		assert.Zero(t, v)
	}
	assert.Equal(t, int64(42), results.Seed)
	assert.NotZero(t, results.ID)
	assert.Greater(t, results.ExecutionTime.Nanoseconds(), int64(0))
}

func TestRunDeterministicForFixedSeed(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	req := func() *simulation.Request {
		return &simulation.Request{
			Risks: []models.Risk{
				normalRisk("r1", 1000, 200, models.ImpactCost),
				normalRisk("r2", 30, 5, models.ImpactSchedule),
			},
			Iterations: 10000,
			Seed:       seed(42),
		}
	}

	a, err := driver.Run(context.Background(), req(), nil)
	require.NoError(t, err)
	b, err := driver.Run(context.Background(), req(), nil)
	require.NoError(t, err)

	assert.Equal(t, a.CostOutcomes, b.CostOutcomes, "outcome arrays must be byte-identical")
	assert.Equal(t, a.ScheduleOutcomes, b.ScheduleOutcomes)
	assert.Equal(t, a.RiskContributions, b.RiskContributions)
}

func TestRunRejectsIterationFloor(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	req := &simulation.Request{
		Risks:      []models.Risk{normalRisk("r1", 1000, 200, models.ImpactCost)},
		Iterations: 5000,
	}
	_, err := driver.Run(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRunRejectsEmptyRiskSet(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	_, err := driver.Run(context.Background(), &simulation.Request{Iterations: 10000}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRunRejectsInvalidCorrelationBeforeSampling(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	r1 := normalRisk("r1", 1000, 200, models.ImpactCost)
	r1.Correlations = []models.CorrelationDependency{{RiskID: "r2", Coefficient: 1.5}}
	req := &simulation.Request{
		Risks:      []models.Risk{r1, normalRisk("r2", 500, 50, models.ImpactCost)},
		Iterations: 10000,
		Seed:       seed(42),
	}
	_, err := driver.Run(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCorrelation(err))
}

func TestRunCorrelatedRisksPreserveMarginals(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	r1 := normalRisk("r1", 1000, 200, models.ImpactCost)
	r1.Correlations = []models.CorrelationDependency{{RiskID: "r2", Coefficient: 0.6}}
	req := &simulation.Request{
		Risks:      []models.Risk{r1, normalRisk("r2", 500, 100, models.ImpactCost)},
		Iterations: 50000,
		Seed:       seed(42),
	}

	results, err := driver.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1000, stat.Mean(results.RiskContributions["r1"], nil), 5)
	assert.InDelta(t, 500, stat.Mean(results.RiskContributions["r2"], nil), 3)
	corr := stat.Correlation(results.RiskContributions["r1"], results.RiskContributions["r2"], nil)
	assert.InDelta(t, 0.6, corr, 0.05)
}

func TestRunReportsProgressCheckpoints(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	req := &simulation.Request{
		Risks:      []models.Risk{normalRisk("r1", 1000, 200, models.ImpactCost)},
		Iterations: 10000,
		Seed:       seed(42),
	}

	var snapshots []Progress
	_, err := driver.Run(context.Background(), req, func(p Progress) {
		snapshots = append(snapshots, p)
	})
	require.NoError(t, err)

	require.Len(t, snapshots, 10, "10%% checkpoint fraction should yield 10 snapshots")
	for i, p := range snapshots {
		assert.Equal(t, (i+1)*1000, p.Completed)
		assert.Equal(t, 10000, p.Total)
	}
	assert.InDelta(t, 1000, snapshots[len(snapshots)-1].RunningMean, 50)
}

func TestRunHonorsCancellation(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	req := &simulation.Request{
		Risks:      []models.Risk{normalRisk("r1", 1000, 200, models.ImpactCost)},
		Iterations: 10000,
		Seed:       seed(42),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.Run(ctx, req, nil)
	require.Error(t, err)
	assert.True(t, errors.IsComputation(err))
}

func TestRunPerformanceTier(t *testing.T) {
	driver := NewDriver(zap.NewNop(), testEngineConfig())
	req := &simulation.Request{
		Risks:      []models.Risk{normalRisk("r1", 1000, 200, models.ImpactCost)},
		Iterations: 10000,
		Seed:       seed(42),
	}
	results, err := driver.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TierFast, results.Tier)
}
