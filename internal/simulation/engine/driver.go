// Package engine runs Monte Carlo simulations over a validated risk set.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/riskfolio/internal/config"
	"github.com/Aidin1998/riskfolio/internal/simulation"
	"github.com/Aidin1998/riskfolio/internal/simulation/convergence"
	"github.com/Aidin1998/riskfolio/internal/simulation/correlation"
	"github.com/Aidin1998/riskfolio/internal/simulation/distribution"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// Progress is one checkpoint snapshot handed to progress observers.
type Progress struct {
	SimulationID uuid.UUID `json:"simulation_id"`
	Completed    int       `json:"completed_iterations"`
	Total        int       `json:"total_iterations"`
	RunningMean  float64   `json:"running_mean"`
	Converged    bool      `json:"converged"`
}

// Driver orchestrates iterations across the sampler, the correlation engine
// and the convergence monitor. A Driver is stateless across runs and safe for
// concurrent use.
type Driver struct {
	logger *zap.Logger
	cfg    config.EngineConfig
}

// NewDriver creates a simulation driver.
func NewDriver(logger *zap.Logger, cfg config.EngineConfig) *Driver {
	return &Driver{logger: logger, cfg: cfg}
}

// Run executes the full simulation and returns an immutable results record.
// Input-shape errors are rejected before any iteration buffer is allocated.
// Non-convergence is not an error: the results report whatever convergence
// state the final checkpoint reached. onProgress may be nil.
func (d *Driver) Run(ctx context.Context, req *simulation.Request, onProgress func(Progress)) (*models.SimulationResults, error) {
	if err := simulation.ValidateRequest(req, d.cfg); err != nil {
		return nil, err
	}

	corr, err := correlation.Build(req.Risks, req.CorrelationOverrides)
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	id := uuid.New()
	start := time.Now()
	n := len(req.Risks)
	iterations := req.Iterations
	d.logger.Info("starting simulation",
		zap.String("simulation_id", id.String()),
		zap.Int("risks", n),
		zap.Int("iterations", iterations),
		zap.Int64("seed", seed),
		zap.Bool("correlated", corr.Correlated()),
	)

	draws, err := d.sample(req.Risks, corr, seed, iterations)
	if err != nil {
		return nil, err
	}

	costOutcomes := make([]float64, iterations)
	scheduleOutcomes := make([]float64, iterations)
	contributions := make(map[string][]float64, n)

	monitor := convergence.NewMonitor(d.cfg.StabilityTolerance, d.cfg.TrackedPercentiles)
	primary := d.primaryAxis(req.Risks, costOutcomes, scheduleOutcomes)

	checkpoint := int(float64(iterations) * d.cfg.CheckpointFraction)
	if checkpoint < 1 {
		checkpoint = 1
	}

	for i, r := range req.Risks {
		row := draws[i]
		contributions[r.ID] = row
		target := costOutcomes
		if r.Impact == models.ImpactSchedule {
			target = scheduleOutcomes
		}
		for j, v := range row {
			target[j] += v
		}
	}

	// Checkpoints replay the accumulated series; sampling above is batch
	// work, so the monitor observes prefixes of the final arrays.
	for done := checkpoint; done <= iterations; done += checkpoint {
		if done+checkpoint > iterations {
			done = iterations
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindComputation, err, "simulation cancelled")
		}
		monitor.Observe(primary[:done], done)
		if onProgress != nil {
			onProgress(Progress{
				SimulationID: id,
				Completed:    done,
				Total:        iterations,
				RunningMean:  mean(primary[:done]),
				Converged:    monitor.Converged(),
			})
		}
		if done == iterations {
			break
		}
	}

	elapsed := time.Since(start)
	results := &models.SimulationResults{
		ID:                id,
		CreatedAt:         start.UTC(),
		Iterations:        iterations,
		Seed:              seed,
		CostOutcomes:      costOutcomes,
		ScheduleOutcomes:  scheduleOutcomes,
		RiskContributions: contributions,
		Convergence:       monitor.Metrics(),
		ExecutionTime:     elapsed,
		Tier:              d.tier(n, iterations),
	}

	d.logger.Info("simulation complete",
		zap.String("simulation_id", id.String()),
		zap.Duration("elapsed", elapsed),
		zap.Bool("converged", results.Convergence.Converged),
		zap.String("tier", string(results.Tier)),
	)
	return results, nil
}

// sample draws the full [risk][iteration] matrix. Correlated risk sets go
// through the copula transform; independent sets sample marginals directly.
func (d *Driver) sample(risks []models.Risk, corr *correlation.Engine, seed int64, iterations int) ([][]float64, error) {
	sampler := distribution.NewSampler(seed)
	n := len(risks)

	if !corr.Correlated() {
		draws := make([][]float64, n)
		for i, r := range risks {
			row, err := sampler.Sample(r.Distribution, iterations)
			if err != nil {
				return nil, err
			}
			draws[i] = row
		}
		return draws, nil
	}

	normals := make([][]float64, n)
	for i := range normals {
		normals[i] = sampler.SampleNormal(iterations)
	}
	return corr.Transform(risks, normals)
}

// primaryAxis picks the outcome series the convergence monitor watches: cost
// when any risk impacts cost, otherwise schedule.
func (d *Driver) primaryAxis(risks []models.Risk, cost, schedule []float64) []float64 {
	for _, r := range risks {
		if r.Impact == models.ImpactCost {
			return cost
		}
	}
	return schedule
}

// tier grades the run shape against the configured latency budgets.
func (d *Driver) tier(riskCount, iterations int) models.PerformanceTier {
	est := simulation.EstimateDuration(riskCount, iterations)
	switch {
	case est <= d.cfg.FastBudget:
		return models.TierFast
	case est <= d.cfg.StandardBudget:
		return models.TierStandard
	default:
		return models.TierDegraded
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
