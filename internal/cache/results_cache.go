// Package cache implements the external result-cache collaborator on Redis,
// memoizing simulation results by request fingerprint. The core itself holds
// no cache state; a nil cache is always safe.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Aidin1998/riskfolio/pkg/models"
)

const resultKeyPattern = "simulation:results:%s"

// ResultsCache memoizes completed simulation results in Redis.
type ResultsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultsCache connects to Redis and verifies the connection.
func NewResultsCache(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*ResultsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &ResultsCache{client: client, ttl: ttl, logger: logger}, nil
}

// Get returns the cached results for a fingerprint, or nil on a miss. Cache
// failures are logged and reported as misses so a run is never blocked.
func (c *ResultsCache) Get(ctx context.Context, fingerprint string) (*models.SimulationResults, error) {
	if fingerprint == "" {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, fmt.Sprintf(resultKeyPattern, fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		c.logger.Warn("result cache read failed", zap.Error(err))
		return nil, nil
	}
	var results models.SimulationResults
	if err := json.Unmarshal(raw, &results); err != nil {
		c.logger.Warn("result cache payload corrupt, ignoring", zap.Error(err))
		return nil, nil
	}
	return &results, nil
}

// Set stores completed results under the fingerprint with the configured TTL.
func (c *ResultsCache) Set(ctx context.Context, fingerprint string, results *models.SimulationResults) error {
	if fingerprint == "" || results == nil {
		return nil
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, fmt.Sprintf(resultKeyPattern, fingerprint), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("result cache write failed", zap.Error(err))
	}
	return nil
}

// Close releases the Redis connection.
func (c *ResultsCache) Close() error {
	return c.client.Close()
}
