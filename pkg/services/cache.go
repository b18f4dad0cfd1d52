package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

const (
	classificationCachePrefix = "nanp:classification:"
	classificationCacheTTL    = 15 * time.Minute
)

// ClassificationCache is an optional Redis read-through cache for public
// classifications. All methods are best-effort and nil-safe: with no Redis
// configured the cache is a nil pointer and every call is a no-op, so the
// classification path never depends on Redis being up.
type ClassificationCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClassificationCache wraps a Redis client. Returns nil when the client
// is nil (Redis not configured).
func NewClassificationCache(client *redis.Client, logger *zap.Logger) *ClassificationCache {
	if client == nil {
		return nil
	}
	return &ClassificationCache{
		client: client,
		logger: logger.Named("classification-cache"),
	}
}

// Get returns a cached classification for an NPA, if present.
func (c *ClassificationCache) Get(ctx context.Context, npa string) (*models.PublicClassification, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, classificationCachePrefix+npa).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("Cache read failed", zap.String("npa", npa), zap.Error(err))
		}
		return nil, false
	}

	var classification models.PublicClassification
	if err := json.Unmarshal(data, &classification); err != nil {
		c.logger.Debug("Dropping undecodable cache entry", zap.String("npa", npa), zap.Error(err))
		return nil, false
	}

	return &classification, true
}

// Set stores a classification with the cache TTL.
func (c *ClassificationCache) Set(ctx context.Context, npa string, classification *models.PublicClassification) {
	if c == nil {
		return
	}

	data, err := json.Marshal(classification)
	if err != nil {
		c.logger.Debug("Failed to encode cache entry", zap.String("npa", npa), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, classificationCachePrefix+npa, data, classificationCacheTTL).Err(); err != nil {
		c.logger.Debug("Cache write failed", zap.String("npa", npa), zap.Error(err))
	}
}

// Flush removes every cached classification. Called after a successful sync
// and when the local replica is cleared, so cached entries can outlive a
// dataset swap by at most the scan in flight.
func (c *ClassificationCache) Flush(ctx context.Context) {
	if c == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, classificationCachePrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Cache flush scan failed", zap.Error(err))
		return
	}

	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Cache flush delete failed", zap.Error(err))
		return
	}

	c.logger.Debug("Flushed classification cache", zap.Int("keys", len(keys)))
}
