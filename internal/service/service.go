// Package service wraps the synchronous simulation driver in the task/worker
// model the surrounding system consumes: queued runs, per-run progress
// channels, cancellation tokens and the cache/persistence collaborators. The
// core stays single-threaded per run; runs share no mutable state.
package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/riskfolio/internal/config"
	"github.com/Aidin1998/riskfolio/internal/simulation"
	"github.com/Aidin1998/riskfolio/internal/simulation/engine"
	"github.com/Aidin1998/riskfolio/internal/simulation/scenario"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/metrics"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// ResultsCache is the external memoization collaborator, keyed by request
// fingerprint. Implementations must be safe for concurrent use.
type ResultsCache interface {
	Get(ctx context.Context, fingerprint string) (*models.SimulationResults, error)
	Set(ctx context.Context, fingerprint string, results *models.SimulationResults) error
}

// MetadataStore is the external audit/history collaborator.
type MetadataStore interface {
	Save(ctx context.Context, results *models.SimulationResults) error
}

// RunStatus is the lifecycle state of a queued run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Run tracks one submitted simulation through the worker pool.
type Run struct {
	ID      uuid.UUID
	Request *simulation.Request

	mu       sync.RWMutex
	status   RunStatus
	results  *models.SimulationResults
	err      error
	progress chan engine.Progress
	cancel   context.CancelFunc
	done     chan struct{}
}

// Status returns the run's current lifecycle state.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Results returns the completed results, or nil while the run is pending.
func (r *Run) Results() *models.SimulationResults {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.results
}

// Err returns the terminal error, if any.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Progress is the run's checkpoint stream. It is closed when the run ends.
func (r *Run) Progress() <-chan engine.Progress { return r.progress }

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) finish(status RunStatus, results *models.SimulationResults, err error) {
	r.mu.Lock()
	r.status = status
	r.results = results
	r.err = err
	r.mu.Unlock()
	close(r.progress)
	close(r.done)
}

// Service is the boundary orchestrator for simulations and scenarios.
type Service struct {
	logger *zap.Logger
	cfg    *config.Config
	driver *engine.Driver
	cache  ResultsCache
	store  MetadataStore

	mu        sync.RWMutex
	runs      map[uuid.UUID]*Run
	scenarios map[uuid.UUID]*models.Scenario

	jobs chan *Run
	wg   sync.WaitGroup
	base context.Context
	stop context.CancelFunc
}

// NewService creates the orchestrator and starts its worker pool. cache and
// store may be nil.
func NewService(logger *zap.Logger, cfg *config.Config, cache ResultsCache, store MetadataStore) *Service {
	base, stop := context.WithCancel(context.Background())
	s := &Service{
		logger:    logger,
		cfg:       cfg,
		driver:    engine.NewDriver(logger, cfg.Engine),
		cache:     cache,
		store:     store,
		runs:      make(map[uuid.UUID]*Run),
		scenarios: make(map[uuid.UUID]*models.Scenario),
		jobs:      make(chan *Run, cfg.Workers*4),
		base:      base,
		stop:      stop,
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Shutdown cancels in-flight runs and waits for the workers to drain.
func (s *Service) Shutdown() {
	s.stop()
	close(s.jobs)
	s.wg.Wait()
}

// ValidateParameters performs the iteration-free pre-check, including the
// execution-time estimate.
func (s *Service) ValidateParameters(req *simulation.Request) *models.ValidationResult {
	return simulation.ValidateParameters(req, s.cfg.Engine)
}

// RunSync executes a simulation on the calling goroutine, consulting the
// result cache first. This is the path scenario comparison and the CLI use.
func (s *Service) RunSync(ctx context.Context, req *simulation.Request) (*models.SimulationResults, error) {
	if err := simulation.ValidateRequest(req, s.cfg.Engine); err != nil {
		return nil, err
	}
	fingerprint := simulation.Fingerprint(req)
	if s.cache != nil && fingerprint != "" {
		if cached, _ := s.cache.Get(ctx, fingerprint); cached != nil {
			metrics.CacheHits.Inc()
			s.logger.Info("simulation served from cache", zap.String("fingerprint", fingerprint))
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	metrics.ActiveRuns.Inc()
	results, err := s.driver.Run(ctx, req, nil)
	metrics.ActiveRuns.Dec()
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return nil, err
	}
	s.recordCompleted(ctx, fingerprint, results)
	return results, nil
}

// RunStrict behaves like RunSync but treats non-convergence as an error
// carrying the completed iteration count.
func (s *Service) RunStrict(ctx context.Context, req *simulation.Request) (*models.SimulationResults, error) {
	results, err := s.RunSync(ctx, req)
	if err != nil {
		return nil, err
	}
	if !results.Convergence.Converged {
		metrics.RunsTotal.WithLabelValues("non_converged").Inc()
		return results, errors.Convergence(results.Iterations)
	}
	return results, nil
}

// Submit validates the request synchronously, then queues it on the worker
// pool. The returned Run exposes status, progress and cancellation.
func (s *Service) Submit(req *simulation.Request) (*Run, error) {
	if err := simulation.ValidateRequest(req, s.cfg.Engine); err != nil {
		return nil, err
	}
	run := &Run{
		ID:       uuid.New(),
		Request:  req,
		status:   StatusQueued,
		progress: make(chan engine.Progress, 16),
		done:     make(chan struct{}),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	select {
	case s.jobs <- run:
		return run, nil
	default:
		s.mu.Lock()
		delete(s.runs, run.ID)
		s.mu.Unlock()
		return nil, errors.New(errors.KindComputation, "worker queue is full")
	}
}

// Get returns a previously submitted run.
func (s *Service) Get(id uuid.UUID) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

// Cancel abandons a queued or running simulation. Shared state is never
// corrupted; the run simply ends with a cancelled status.
func (s *Service) Cancel(id uuid.UUID) bool {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	run.mu.Lock()
	cancel := run.cancel
	queued := run.status == StatusQueued
	if queued {
		run.status = StatusCancelled
	}
	run.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return queued || cancel != nil
}

func (s *Service) worker() {
	defer s.wg.Done()
	for run := range s.jobs {
		s.execute(run)
	}
}

func (s *Service) execute(run *Run) {
	run.mu.Lock()
	if run.status == StatusCancelled {
		run.mu.Unlock()
		run.finish(StatusCancelled, nil, nil)
		metrics.RunsTotal.WithLabelValues(string(StatusCancelled)).Inc()
		return
	}
	ctx, cancel := context.WithCancel(s.base)
	run.status = StatusRunning
	run.cancel = cancel
	run.mu.Unlock()
	defer cancel()

	fingerprint := simulation.Fingerprint(run.Request)
	if s.cache != nil && fingerprint != "" {
		if cached, _ := s.cache.Get(ctx, fingerprint); cached != nil {
			metrics.CacheHits.Inc()
			run.finish(StatusCompleted, cached, nil)
			metrics.RunsTotal.WithLabelValues(string(StatusCompleted)).Inc()
			return
		}
		metrics.CacheMisses.Inc()
	}

	metrics.ActiveRuns.Inc()
	results, err := s.driver.Run(ctx, run.Request, func(p Progress) {
		select {
		case run.progress <- p:
		default: // slow consumers never stall the run
		}
	})
	metrics.ActiveRuns.Dec()

	switch {
	case err != nil && ctx.Err() != nil:
		run.finish(StatusCancelled, nil, err)
		metrics.RunsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	case err != nil:
		run.finish(StatusFailed, nil, err)
		metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()
	default:
		s.recordCompleted(ctx, fingerprint, results)
		run.finish(StatusCompleted, results, nil)
	}
}

// recordCompleted updates metrics and hands the results to the cache and
// persistence collaborators. Collaborator failures never fail the run.
func (s *Service) recordCompleted(ctx context.Context, fingerprint string, results *models.SimulationResults) {
	metrics.RunsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	metrics.RunDuration.Observe(results.ExecutionTime.Seconds())
	metrics.RunIterations.Observe(float64(results.Iterations))

	if s.cache != nil && fingerprint != "" {
		if err := s.cache.Set(ctx, fingerprint, results); err != nil {
			s.logger.Warn("result cache store failed", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Save(ctx, results); err != nil {
			s.logger.Warn("run metadata store failed", zap.Error(err))
		}
	}
}

// CreateScenario derives and registers a named scenario from base risks plus
// modifications.
func (s *Service) CreateScenario(name, description string, base []models.Risk, mods map[string]models.RiskModification) (*models.Scenario, error) {
	sc, err := scenario.Create(name, description, base, mods)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.scenarios[sc.ID] = sc
	s.mu.Unlock()
	return sc, nil
}

// GetScenario returns a registered scenario.
func (s *Service) GetScenario(id uuid.UUID) (*models.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	return sc, ok
}

// SimulateScenario runs a registered scenario's risk set exactly like a
// standalone request and attaches the results to the scenario.
func (s *Service) SimulateScenario(ctx context.Context, id uuid.UUID, iterations int, seed *int64) (*models.SimulationResults, error) {
	s.mu.RLock()
	sc, ok := s.scenarios[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Validation("scenario_id", "unknown scenario")
	}
	results, err := s.RunSync(ctx, &simulation.Request{
		Risks:      sc.Risks,
		Iterations: iterations,
		Seed:       seed,
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	sc.Results = results
	s.mu.Unlock()
	return results, nil
}

// Progress re-exports the driver's checkpoint snapshot type for consumers.
type Progress = engine.Progress
