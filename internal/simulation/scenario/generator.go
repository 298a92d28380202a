// Package scenario derives modified risk sets from a base set plus parameter
// overrides for what-if analysis.
package scenario

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aidin1998/riskfolio/internal/simulation/distribution"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// Create builds a new immutable scenario from base risks and per-risk
// parameter overrides. Named override keys fully replace the matching
// distribution parameters; risks not named in modifications pass through
// unchanged. Every modified distribution is re-validated before the scenario
// is produced.
func Create(name, description string, base []models.Risk, modifications map[string]models.RiskModification) (*models.Scenario, error) {
	if name == "" {
		return nil, errors.Validation("name", "scenario name is required")
	}
	if len(base) == 0 {
		return nil, errors.Validation("base_risks", "at least one base risk is required")
	}

	byID := make(map[string]struct{}, len(base))
	for _, r := range base {
		byID[r.ID] = struct{}{}
	}
	for id := range modifications {
		if _, ok := byID[id]; !ok {
			return nil, errors.Validation("modifications", fmt.Sprintf("modification references unknown risk %q", id))
		}
	}

	risks := make([]models.Risk, len(base))
	for i, r := range base {
		risks[i] = cloneRisk(r)
		mod, ok := modifications[r.ID]
		if !ok {
			continue
		}
		for key, value := range mod {
			risks[i].Distribution.Parameters[key] = value
		}
		if err := distribution.Validate(risks[i].Distribution); err != nil {
			return nil, errors.Wrap(errors.KindValidation, err,
				fmt.Sprintf("modification leaves risk %q with an invalid distribution", r.ID))
		}
	}

	mods := make(map[string]models.RiskModification, len(modifications))
	for id, m := range modifications {
		copied := make(models.RiskModification, len(m))
		for k, v := range m {
			copied[k] = v
		}
		mods[id] = copied
	}

	return &models.Scenario{
		ID:            uuid.New(),
		Name:          name,
		Description:   description,
		Risks:         risks,
		Modifications: mods,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// cloneRisk deep-copies a risk so scenario mutation never touches the base
// set.
func cloneRisk(r models.Risk) models.Risk {
	out := r
	out.Distribution.Parameters = make(map[string]float64, len(r.Distribution.Parameters))
	for k, v := range r.Distribution.Parameters {
		out.Distribution.Parameters[k] = v
	}
	if r.Distribution.Outcomes != nil {
		out.Distribution.Outcomes = append([]models.DiscreteOutcome(nil), r.Distribution.Outcomes...)
	}
	if r.Correlations != nil {
		out.Correlations = append([]models.CorrelationDependency(nil), r.Correlations...)
	}
	if r.Mitigations != nil {
		out.Mitigations = append([]models.MitigationStrategy(nil), r.Mitigations...)
	}
	return out
}
