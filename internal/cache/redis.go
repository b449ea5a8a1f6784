// Package cache keeps the latest scored history per SME in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "cashflow:risk:"

// ScoreCache stores scored rows keyed by SME, tagged with the model version
// that produced them
type ScoreCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

type entry struct {
	ModelVersion string             `json:"model_version"`
	Rows         []models.ScoredRow `json:"rows"`
}

// NewScoreCache connects to Redis. It returns nil when the server is unreachable;
// a nil cache is valid and never hits.
func NewScoreCache(addr, password string, ttl time.Duration, log *logrus.Logger) *ScoreCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Failed to connect to Redis at %s, score cache disabled: %v", addr, err)
		client.Close()
		return nil
	}

	log.Infof("Connected to Redis at %s", addr)
	return &ScoreCache{client: client, ttl: ttl, log: log}
}

// Get returns cached rows for the SME if they were produced by modelVersion
func (c *ScoreCache) Get(ctx context.Context, smeID, modelVersion string) ([]models.ScoredRow, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, keyPrefix+smeID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debugf("Score cache read failed for %s: %v", smeID, err)
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(val, &e); err != nil || e.ModelVersion != modelVersion {
		return nil, false
	}
	return e.Rows, true
}

// Set stores scored rows for the SME
func (c *ScoreCache) Set(ctx context.Context, smeID, modelVersion string, rows []models.ScoredRow) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(entry{ModelVersion: modelVersion, Rows: rows})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.client.Set(ctx, keyPrefix+smeID, data, c.ttl).Err()
}

// Invalidate drops cached rows for the given SMEs
func (c *ScoreCache) Invalidate(ctx context.Context, smeIDs ...string) error {
	if c == nil || len(smeIDs) == 0 {
		return nil
	}
	keys := make([]string, len(smeIDs))
	for i, id := range smeIDs {
		keys[i] = keyPrefix + id
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the Redis connection
func (c *ScoreCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
