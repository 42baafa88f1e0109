package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/model"
)

// QueryCacheConfig configures the answer cache.
type QueryCacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
}

// QueryCache caches generated answers in Redis, keyed by a hash of the
// question. Cache failures are logged and treated as misses; the cache
// never blocks a query.
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache creates a query cache. A nil config disables caching.
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "docqa:query:",
		}
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// Enabled reports whether caching is active.
func (c *QueryCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

func (c *QueryCache) cacheKey(question string) string {
	hash := sha256.Sum256([]byte(question))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get returns the cached answer for a question, or nil on a miss.
func (c *QueryCache) Get(ctx context.Context, question string) *model.Answer {
	if !c.Enabled() {
		return nil
	}

	key := c.cacheKey(question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("Failed to read query cache", "key", key, "error", err)
		}
		return nil
	}

	var answer model.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		logger.Warnw("Failed to decode cached answer", "key", key, "error", err)
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}

	return &answer
}

// Set stores an answer for a question.
func (c *QueryCache) Set(ctx context.Context, question string, answer *model.Answer) {
	if !c.Enabled() {
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		logger.Warnw("Failed to encode answer for caching", "error", err)
		return
	}

	key := c.cacheKey(question)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("Failed to write query cache", "key", key, "error", err)
	}
}

// Clear removes all cached answers.
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("Failed to delete cache key", "key", iter.Val(), "error", err)
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Infow("Query cache cleared", "deleted", deleted)
	return nil
}
