package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

func baseRisks() []models.Risk {
	return []models.Risk{
		{
			ID:     "cost-overrun",
			Name:   "Cost overrun",
			Impact: models.ImpactCost,
			Distribution: models.ProbabilityDistribution{
				Type:       models.DistributionTriangular,
				Parameters: map[string]float64{"min": 100, "mode": 200, "max": 500},
			},
		},
		{
			ID:     "vendor-delay",
			Name:   "Vendor delay",
			Impact: models.ImpactSchedule,
			Distribution: models.ProbabilityDistribution{
				Type:       models.DistributionNormal,
				Parameters: map[string]float64{"mean": 30, "std_dev": 10},
			},
		},
	}
}

func TestCreateAppliesOverridesAndKeepsOthers(t *testing.T) {
	base := baseRisks()
	sc, err := Create("pessimistic", "worst case", base, map[string]models.RiskModification{
		"cost-overrun": {"max": 900, "mode": 400},
	})
	require.NoError(t, err)

	assert.NotZero(t, sc.ID)
	assert.Equal(t, "pessimistic", sc.Name)
	require.Len(t, sc.Risks, 2)

	modified := sc.Risks[0]
	assert.Equal(t, 900.0, modified.Distribution.Parameters["max"])
	assert.Equal(t, 400.0, modified.Distribution.Parameters["mode"])
	// Untouched keys survive the merge.
	assert.Equal(t, 100.0, modified.Distribution.Parameters["min"])

	// Risks not named in the modifications pass through unchanged.
	assert.Equal(t, base[1], sc.Risks[1])
}

func TestCreateDoesNotMutateBaseRisks(t *testing.T) {
	base := baseRisks()
	_, err := Create("variant", "", base, map[string]models.RiskModification{
		"cost-overrun": {"max": 900},
	})
	require.NoError(t, err)
	assert.Equal(t, 500.0, base[0].Distribution.Parameters["max"],
		"scenario creation must not touch the base risk set")
}

func TestCreateRejectsUnknownRisk(t *testing.T) {
	_, err := Create("variant", "", baseRisks(), map[string]models.RiskModification{
		"ghost": {"max": 900},
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreateRevalidatesModifiedDistributions(t *testing.T) {
	// Pushing max below min must be caught by re-validation.
	_, err := Create("broken", "", baseRisks(), map[string]models.RiskModification{
		"cost-overrun": {"max": 50},
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreateRejectsEmptyInputs(t *testing.T) {
	_, err := Create("", "", baseRisks(), nil)
	require.Error(t, err)

	_, err = Create("variant", "", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
