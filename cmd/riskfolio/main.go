package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Aidin1998/riskfolio/internal/cache"
	"github.com/Aidin1998/riskfolio/internal/config"
	"github.com/Aidin1998/riskfolio/internal/persistence"
	"github.com/Aidin1998/riskfolio/internal/server"
	"github.com/Aidin1998/riskfolio/internal/service"
	"github.com/Aidin1998/riskfolio/internal/simulation"
	"github.com/Aidin1998/riskfolio/internal/simulation/analysis"
	"github.com/Aidin1998/riskfolio/pkg/logger"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// riskFile is the YAML shape accepted by the one-shot -f mode.
type riskFile struct {
	Iterations int           `yaml:"iterations"`
	Seed       *int64        `yaml:"seed"`
	Risks      []models.Risk `yaml:"risks"`
}

func main() {
	file := flag.String("f", "", "run a single simulation from a YAML risk file and print the analysis")
	strict := flag.Bool("strict", false, "with -f, fail when the run does not converge")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Optional collaborators: result cache and run-history store.
	var resultsCache service.ResultsCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewResultsCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, zapLogger)
		if err != nil {
			zapLogger.Warn("result cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer rc.Close()
			resultsCache = rc
		}
	}

	var store *persistence.Store
	if cfg.DatabasePath != "" {
		store, err = persistence.NewStore(cfg.DatabasePath, zapLogger)
		if err != nil {
			zapLogger.Warn("run history store unavailable, continuing without it", zap.Error(err))
			store = nil
		}
	}

	var metadataStore service.MetadataStore
	if store != nil {
		metadataStore = store
	}
	svc := service.NewService(zapLogger, cfg, resultsCache, metadataStore)
	defer svc.Shutdown()

	if *file != "" {
		if err := runOnce(svc, *file, *strict); err != nil {
			zapLogger.Fatal("simulation failed", zap.Error(err))
		}
		return
	}

	var history server.HistoryStore
	if store != nil {
		history = store
	}
	srv := server.NewServer(zapLogger, svc, history)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(cfg.HTTPAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		zapLogger.Fatal("HTTP server failed", zap.Error(err))
	case sig := <-quit:
		zapLogger.Info("shutting down", zap.String("signal", sig.String()))
	}
}

// runOnce executes a single simulation from a YAML file and prints the
// percentile and tornado analysis as JSON.
func runOnce(svc *service.Service, path string, strict bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read risk file: %w", err)
	}
	var rf riskFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("parse risk file: %w", err)
	}

	req := &simulation.Request{
		Risks:      rf.Risks,
		Iterations: rf.Iterations,
		Seed:       rf.Seed,
	}

	ctx := context.Background()
	var results *models.SimulationResults
	if strict {
		results, err = svc.RunStrict(ctx, req)
	} else {
		results, err = svc.RunSync(ctx, req)
	}
	if err != nil {
		return err
	}

	percentiles, err := analysis.Percentiles(results, models.ImpactCost, []float64{10, 50, 90})
	if err != nil {
		return err
	}
	contributors, err := analysis.TopRiskContributors(results, req.Risks, 10)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"simulation_id":    results.ID,
		"iterations":       results.Iterations,
		"seed":             results.Seed,
		"execution_time":   results.ExecutionTime.String(),
		"performance_tier": results.Tier,
		"converged":        results.Convergence.Converged,
		"cost_percentiles": percentiles,
		"top_contributors": contributors,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
