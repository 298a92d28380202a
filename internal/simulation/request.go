// Package simulation defines the simulation request surface shared by the
// driver, the boundary service and the HTTP layer.
package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Aidin1998/riskfolio/internal/config"
	"github.com/Aidin1998/riskfolio/internal/simulation/correlation"
	"github.com/Aidin1998/riskfolio/internal/simulation/distribution"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

var validate = validator.New()

// Request is one simulation run request.
type Request struct {
	Risks      []models.Risk `json:"risks" validate:"required,min=1"`
	Iterations int           `json:"iterations" validate:"required"`
	// Seed makes the run reproducible. Nil draws a time-based seed.
	Seed *int64 `json:"seed,omitempty"`
	// CorrelationOverrides replace per-risk coefficient declarations.
	CorrelationOverrides []models.CorrelationPair `json:"correlation_overrides,omitempty"`
}

// perDrawCost approximates the time to sample and aggregate one risk draw on
// commodity hardware. Used only for estimates and tier reporting.
const perDrawCost = 150 * time.Nanosecond

// EstimateDuration predicts wall-clock time for a run of the given shape.
func EstimateDuration(riskCount, iterations int) time.Duration {
	return time.Duration(riskCount*iterations) * perDrawCost
}

// ValidateRequest rejects malformed requests synchronously, before any
// iteration buffer is allocated. The returned error is validation- or
// correlation-kind.
func ValidateRequest(req *Request, cfg config.EngineConfig) error {
	if err := validate.Struct(req); err != nil {
		verr := errors.New(errors.KindValidation, "invalid simulation request")
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verr.WithField(fe.Namespace(), fe.Tag())
			}
		}
		return verr
	}
	if len(req.Risks) == 0 {
		return errors.Validation("risks", "at least one risk is required")
	}
	if req.Iterations < cfg.MinIterations {
		return errors.Validation("iterations",
			fmt.Sprintf("iteration count %d is below the minimum of %d", req.Iterations, cfg.MinIterations))
	}
	if cfg.MaxIterations > 0 && req.Iterations > cfg.MaxIterations {
		return errors.Validation("iterations",
			fmt.Sprintf("iteration count %d exceeds the configured maximum of %d", req.Iterations, cfg.MaxIterations))
	}

	seen := make(map[string]struct{}, len(req.Risks))
	for i, r := range req.Risks {
		field := fmt.Sprintf("risks[%d]", i)
		if r.ID == "" {
			return errors.Validation(field+".id", "risk id is required")
		}
		if _, dup := seen[r.ID]; dup {
			return errors.Validation(field+".id", fmt.Sprintf("duplicate risk id %q", r.ID))
		}
		seen[r.ID] = struct{}{}
		if !r.Impact.Valid() {
			return errors.Validation(field+".impact_type", fmt.Sprintf("unknown impact type %q", r.Impact))
		}
		if r.Category != "" && !r.Category.Valid() {
			return errors.Validation(field+".category", fmt.Sprintf("unknown category %q", r.Category))
		}
		if err := distribution.Validate(r.Distribution); err != nil {
			return errors.Wrap(errors.KindValidation, err, fmt.Sprintf("risk %q has an invalid distribution", r.ID))
		}
		for _, dep := range r.Correlations {
			if dep.RiskID == r.ID {
				return errors.Correlation(r.ID, dep.RiskID, "a risk may not correlate with itself")
			}
		}
	}

	// Matrix-level validation happens once, before sampling.
	if _, err := correlation.Build(req.Risks, req.CorrelationOverrides); err != nil {
		return err
	}
	return nil
}

// ValidateParameters runs the pre-check external callers use before
// submitting a run: blocking errors, non-blocking warnings, advisory
// recommendations and an execution-time estimate, with no iterations run.
func ValidateParameters(req *Request, cfg config.EngineConfig) *models.ValidationResult {
	result := &models.ValidationResult{
		Valid:             true,
		EstimatedDuration: EstimateDuration(len(req.Risks), req.Iterations),
	}

	if err := ValidateRequest(req, cfg); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if len(req.Risks) > 100 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d risks exceeds the tested scale of 100; expect degraded performance", len(req.Risks)))
	}
	if req.Iterations >= 500000 {
		result.Recommendations = append(result.Recommendations,
			"iteration counts this high rarely improve percentile estimates; consider checking convergence at 100000 first")
	}
	if req.Seed == nil {
		result.Recommendations = append(result.Recommendations,
			"set an explicit seed to make this run reproducible and cacheable")
	}
	for _, r := range req.Risks {
		mean, err := distribution.Mean(r.Distribution)
		if err != nil {
			continue
		}
		if r.BaselineImpact != 0 && math.Abs(mean-r.BaselineImpact) > math.Abs(r.BaselineImpact) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("risk %q: distribution mean %.4g is far from the baseline impact %.4g", r.ID, mean, r.BaselineImpact))
		}
		for _, dep := range r.Correlations {
			if math.Abs(dep.Coefficient) > 0.95 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("correlation %s<->%s is %.2f; near-unit coefficients make the matrix close to singular", r.ID, dep.RiskID, dep.Coefficient))
			}
		}
	}
	for _, o := range req.CorrelationOverrides {
		if math.Abs(o.Coefficient) > 0.95 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("correlation %s<->%s is %.2f; near-unit coefficients make the matrix close to singular", o.RiskA, o.RiskB, o.Coefficient))
		}
	}
	return result
}
