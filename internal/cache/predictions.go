// Package cache holds the redis-backed read cache for prediction lookups.
// The prediction table is tiny but read-heavy; caching the per-student
// latest row keeps dashboard fan-out off postgres.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
	"github.com/edumind/engagement-tracker/internal/utils"
)

const (
	keyPrefix       = "prediction:"
	latestKeyPrefix = keyPrefix + "latest:"
	atRiskKeyPrefix = keyPrefix + "atrisk:"
)

type PredictionCache interface {
	GetLatest(ctx context.Context, studentID string) (*types.DisengagementPrediction, bool)
	SetLatest(ctx context.Context, pred *types.DisengagementPrediction)
	GetAtRisk(ctx context.Context, days int, riskLevel string) ([]*types.DisengagementPrediction, bool)
	SetAtRisk(ctx context.Context, days int, riskLevel string, preds []*types.DisengagementPrediction)
	// InvalidateAll drops every cached prediction; called after each
	// training cycle replaces the table.
	InvalidateAll(ctx context.Context) error
	Close() error
}

type predictionCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewPredictionCache connects to redis using REDIS_ADDR. Returns an error
// when the address is missing or unreachable; callers that can serve
// without a cache fall back to NewNoopCache.
func NewPredictionCache(log *logger.Logger) (PredictionCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttlSeconds := utils.GetEnvAsInt("PREDICTION_CACHE_TTL_SECONDS", 300, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    utils.GetEnv("REDIS_PASSWORD", "", log),
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &predictionCache{
		log: log.With("service", "PredictionCache"),
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

func (c *predictionCache) GetLatest(ctx context.Context, studentID string) (*types.DisengagementPrediction, bool) {
	data, err := c.rdb.Get(ctx, latestKeyPrefix+studentID).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Cache read failed", "student_id", studentID, "error", err)
		}
		return nil, false
	}
	var pred types.DisengagementPrediction
	if err := json.Unmarshal(data, &pred); err != nil {
		c.log.Warn("Cache entry corrupt, dropping", "student_id", studentID, "error", err)
		_ = c.rdb.Del(ctx, latestKeyPrefix+studentID).Err()
		return nil, false
	}
	return &pred, true
}

func (c *predictionCache) SetLatest(ctx context.Context, pred *types.DisengagementPrediction) {
	if pred == nil {
		return
	}
	data, err := json.Marshal(pred)
	if err != nil {
		c.log.Warn("Cache encode failed", "student_id", pred.StudentID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, latestKeyPrefix+pred.StudentID, data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "student_id", pred.StudentID, "error", err)
	}
}

func (c *predictionCache) GetAtRisk(ctx context.Context, days int, riskLevel string) ([]*types.DisengagementPrediction, bool) {
	key := atRiskKey(days, riskLevel)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var preds []*types.DisengagementPrediction
	if err := json.Unmarshal(data, &preds); err != nil {
		c.log.Warn("Cache entry corrupt, dropping", "key", key, "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return nil, false
	}
	return preds, true
}

func (c *predictionCache) SetAtRisk(ctx context.Context, days int, riskLevel string, preds []*types.DisengagementPrediction) {
	data, err := json.Marshal(preds)
	if err != nil {
		c.log.Warn("Cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, atRiskKey(days, riskLevel), data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "error", err)
	}
}

func atRiskKey(days int, riskLevel string) string {
	if riskLevel == "" {
		riskLevel = "any"
	}
	return fmt.Sprintf("%s%d:%s", atRiskKeyPrefix, days, riskLevel)
}

func (c *predictionCache) InvalidateAll(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning prediction keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting prediction keys: %w", err)
	}
	c.log.Info("Invalidated prediction cache", "keys", len(keys))
	return nil
}

func (c *predictionCache) Close() error { return c.rdb.Close() }

// noopCache serves deployments without redis: every lookup misses.
type noopCache struct{}

func NewNoopCache() PredictionCache { return noopCache{} }

func (noopCache) GetLatest(context.Context, string) (*types.DisengagementPrediction, bool) {
	return nil, false
}
func (noopCache) SetLatest(context.Context, *types.DisengagementPrediction) {}
func (noopCache) GetAtRisk(context.Context, int, string) ([]*types.DisengagementPrediction, bool) {
	return nil, false
}
func (noopCache) SetAtRisk(context.Context, int, string, []*types.DisengagementPrediction) {}
func (noopCache) InvalidateAll(context.Context) error                                      { return nil }
func (noopCache) Close() error                                                             { return nil }
