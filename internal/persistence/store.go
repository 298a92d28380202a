// Package persistence stores simulation run metadata for audit and history.
// The core never depends on persistence succeeding; failures are logged and
// swallowed by the caller.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gonum.org/v1/gonum/stat"

	"github.com/Aidin1998/riskfolio/pkg/models"
)

// RunRecord is the persisted metadata of one simulation run. Outcome means
// are stored as fixed-point strings for audit readability.
type RunRecord struct {
	ID              string    `gorm:"primaryKey"`
	CreatedAt       time.Time `gorm:"index"`
	Iterations      int
	RiskCount       int
	Seed            int64
	Converged       bool
	ExecutionTimeMS int64
	MeanCost        string
	MeanSchedule    string
	PerformanceTier string
}

// Store persists run records to sqlite through gorm.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the sqlite database and migrates the schema.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open run history database: %w", err)
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate run history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save writes the metadata of a completed run.
func (s *Store) Save(ctx context.Context, results *models.SimulationResults) error {
	record := RunRecord{
		ID:              results.ID.String(),
		CreatedAt:       results.CreatedAt,
		Iterations:      results.Iterations,
		RiskCount:       len(results.RiskContributions),
		Seed:            results.Seed,
		Converged:       results.Convergence.Converged,
		ExecutionTimeMS: results.ExecutionTime.Milliseconds(),
		MeanCost:        meanString(results.CostOutcomes),
		MeanSchedule:    meanString(results.ScheduleOutcomes),
		PerformanceTier: string(results.Tier),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logger.Warn("run history write failed", zap.String("simulation_id", record.ID), zap.Error(err))
		return err
	}
	return nil
}

// Recent lists the most recent run records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []RunRecord
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&records).Error
	return records, err
}

func meanString(series []float64) string {
	if len(series) == 0 {
		return decimal.Zero.String()
	}
	return decimal.NewFromFloat(stat.Mean(series, nil)).Round(2).String()
}
