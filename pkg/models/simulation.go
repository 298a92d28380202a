// Package models defines the shared domain model for the risk simulation core.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributionType identifies the probability distribution attached to a risk.
type DistributionType string

const (
	DistributionTriangular DistributionType = "triangular"
	DistributionNormal     DistributionType = "normal"
	DistributionUniform    DistributionType = "uniform"
	DistributionLogNormal  DistributionType = "lognormal"
	DistributionPERT       DistributionType = "pert"
	DistributionDiscrete   DistributionType = "discrete"
)

// Valid reports whether t is a member of the closed distribution set.
func (t DistributionType) Valid() bool {
	switch t {
	case DistributionTriangular, DistributionNormal, DistributionUniform,
		DistributionLogNormal, DistributionPERT, DistributionDiscrete:
		return true
	}
	return false
}

// ImpactType declares which outcome axis a risk affects.
type ImpactType string

const (
	ImpactCost     ImpactType = "cost"
	ImpactSchedule ImpactType = "schedule"
)

func (t ImpactType) Valid() bool {
	return t == ImpactCost || t == ImpactSchedule
}

// RiskCategory classifies a risk for reporting purposes.
type RiskCategory string

const (
	CategoryCost        RiskCategory = "cost"
	CategorySchedule    RiskCategory = "schedule"
	CategoryTechnical   RiskCategory = "technical"
	CategoryOperational RiskCategory = "operational"
)

func (c RiskCategory) Valid() bool {
	switch c {
	case CategoryCost, CategorySchedule, CategoryTechnical, CategoryOperational:
		return true
	}
	return false
}

// DiscreteOutcome is one branch of a discrete distribution.
type DiscreteOutcome struct {
	Value       float64 `json:"value" yaml:"value"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// ProbabilityDistribution describes how a risk's impact varies.
// Parameters carries the tag-specific keys (min/mode/max, mean/std_dev, ...);
// Outcomes is only used by the discrete type.
type ProbabilityDistribution struct {
	Type       DistributionType   `json:"type" yaml:"type"`
	Parameters map[string]float64 `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Outcomes   []DiscreteOutcome  `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// CorrelationDependency declares a pairwise correlation from the owning risk
// to another risk.
type CorrelationDependency struct {
	RiskID      string  `json:"risk_id" yaml:"risk_id"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// MitigationStrategy is informational only; the core carries it through
// untouched for downstream reporting.
type MitigationStrategy struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Risk is a single project risk with exactly one distribution.
type Risk struct {
	ID             string                  `json:"id" yaml:"id" validate:"required"`
	Name           string                  `json:"name" yaml:"name" validate:"required"`
	Category       RiskCategory            `json:"category" yaml:"category"`
	Impact         ImpactType              `json:"impact_type" yaml:"impact_type"`
	Distribution   ProbabilityDistribution `json:"distribution" yaml:"distribution"`
	BaselineImpact float64                 `json:"baseline_impact" yaml:"baseline_impact"`
	Correlations   []CorrelationDependency `json:"correlations,omitempty" yaml:"correlations,omitempty"`
	Mitigations    []MitigationStrategy    `json:"mitigations,omitempty" yaml:"mitigations,omitempty"`
}

// CorrelationPair is a request-level override for the coefficient between two
// risks, taking precedence over per-risk declarations.
type CorrelationPair struct {
	RiskA       string  `json:"risk_a"`
	RiskB       string  `json:"risk_b"`
	Coefficient float64 `json:"coefficient"`
}

// ConvergenceMetrics captures how stable the running statistics were at the
// final checkpoint. Stability scores are in [0, 1]; 1 means the statistic did
// not move between checkpoints.
type ConvergenceMetrics struct {
	MeanStability           float64            `json:"mean_stability"`
	VarianceStability       float64            `json:"variance_stability"`
	PercentileStability     map[string]float64 `json:"percentile_stability"`
	Converged               bool               `json:"converged"`
	IterationsToConvergence *int               `json:"iterations_to_convergence,omitempty"`
}

// PerformanceTier reports how the run sized up against the latency budget.
type PerformanceTier string

const (
	TierFast     PerformanceTier = "fast"
	TierStandard PerformanceTier = "standard"
	TierDegraded PerformanceTier = "degraded"
)

// SimulationResults is the immutable outcome of one simulation run.
type SimulationResults struct {
	ID                uuid.UUID            `json:"id"`
	CreatedAt         time.Time            `json:"created_at"`
	Iterations        int                  `json:"iterations"`
	Seed              int64                `json:"seed"`
	CostOutcomes      []float64            `json:"cost_outcomes"`
	ScheduleOutcomes  []float64            `json:"schedule_outcomes"`
	RiskContributions map[string][]float64 `json:"risk_contributions"`
	Convergence       ConvergenceMetrics   `json:"convergence"`
	ExecutionTime     time.Duration        `json:"execution_time"`
	Tier              PerformanceTier      `json:"performance_tier"`
}

// RiskModification maps distribution parameter names to replacement values.
// Named keys fully replace the existing values; unnamed keys are kept.
type RiskModification map[string]float64

// Scenario is an independently simulatable variant of a base risk set.
type Scenario struct {
	ID            uuid.UUID                   `json:"id"`
	Name          string                      `json:"name"`
	Description   string                      `json:"description,omitempty"`
	Risks         []Risk                      `json:"risks"`
	Modifications map[string]RiskModification `json:"modifications,omitempty"`
	Results       *SimulationResults          `json:"results,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
}

// ValidationResult is the outcome of a pre-run parameter check.
type ValidationResult struct {
	Valid             bool          `json:"valid"`
	Errors            []string      `json:"errors,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
	Recommendations   []string      `json:"recommendations,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}
