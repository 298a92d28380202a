// Package config loads runtime configuration for the simulation service.
package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig tunes the simulation driver and convergence monitor.
type EngineConfig struct {
	// MinIterations is the hard floor for requested iterations.
	MinIterations int
	// MaxIterations is the configured ceiling; requests above it are
	// rejected by validation.
	MaxIterations int
	// CheckpointFraction is the share of iterations between convergence
	// checkpoints (0.1 means a checkpoint every 10% of the run).
	CheckpointFraction float64
	// StabilityTolerance is the maximum relative change between checkpoints
	// for a statistic to count as stable.
	StabilityTolerance float64
	// TrackedPercentiles are the percentiles watched for convergence and
	// reported by the analyzer.
	TrackedPercentiles []float64
	// FastBudget and StandardBudget bound the estimated run time for the
	// fast and standard performance tiers. Anything slower is degraded.
	FastBudget     time.Duration
	StandardBudget time.Duration
}

// RedisConfig configures the external result cache collaborator.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Config is the full service configuration.
type Config struct {
	LogLevel string
	HTTPAddr string
	Workers  int
	Engine   EngineConfig
	Redis    RedisConfig
	// DatabasePath is the sqlite file for the run-history store. Empty
	// disables persistence.
	DatabasePath string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RISKFOLIO")
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("WORKERS", 4)
	v.SetDefault("MIN_ITERATIONS", 10000)
	v.SetDefault("MAX_ITERATIONS", 1000000)
	v.SetDefault("CHECKPOINT_FRACTION", 0.1)
	v.SetDefault("STABILITY_TOLERANCE", 0.005)
	v.SetDefault("TRACKED_PERCENTILES", []float64{10, 50, 90})
	v.SetDefault("FAST_BUDGET", 5*time.Second)
	v.SetDefault("STANDARD_BUDGET", 30*time.Second)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", time.Hour)
	v.SetDefault("DATABASE_PATH", "")

	cfg := &Config{
		LogLevel: v.GetString("LOG_LEVEL"),
		HTTPAddr: v.GetString("HTTP_ADDR"),
		Workers:  v.GetInt("WORKERS"),
		Engine: EngineConfig{
			MinIterations:      v.GetInt("MIN_ITERATIONS"),
			MaxIterations:      v.GetInt("MAX_ITERATIONS"),
			CheckpointFraction: v.GetFloat64("CHECKPOINT_FRACTION"),
			StabilityTolerance: v.GetFloat64("STABILITY_TOLERANCE"),
			TrackedPercentiles: floatSlice(v, "TRACKED_PERCENTILES"),
			FastBudget:         v.GetDuration("FAST_BUDGET"),
			StandardBudget:     v.GetDuration("STANDARD_BUDGET"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		DatabasePath: v.GetString("DATABASE_PATH"),
	}

	return cfg, nil
}

// Default returns the configuration used when no environment is present.
// Tests and library consumers use it to avoid touching process state.
func Default() *Config {
	cfg, _ := Load()
	return cfg
}

func floatSlice(v *viper.Viper, key string) []float64 {
	if fs, ok := v.Get(key).([]float64); ok {
		return fs
	}
	var out []float64
	for _, s := range v.GetStringSlice(key) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []float64{10, 50, 90}
	}
	return out
}
