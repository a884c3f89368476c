package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

// ResultCache stores publish-validation results keyed by tree content hash and policy. A tree
// version's content never changes, so entries only expire by TTL.
type ResultCache struct {
	rdb    *redis.Client
	logger ectologger.Logger
	prefix string
	ttl    time.Duration
}

func NewResultCache(client *Client, ttl time.Duration, logger ectologger.Logger) *ResultCache {
	return &ResultCache{
		rdb:    client.rdb,
		logger: logger,
		prefix: client.prefix,
		ttl:    ttl,
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CacheKey builds the key for one tree hash under one policy.
func CacheKey(prefix, treeHash string, policy models.Policy) string {
	bits := strings.Join([]string{
		flag(policy.StrictPricebookRefsAtPublish),
		flag(policy.DivByZeroStrict),
		flag(policy.NegativeQuantityStrict),
		flag(policy.AmbiguousEdgesStrict),
		flag(policy.OutOfRangeSelectionsStrict),
	}, "")
	return joinKey(prefix, "validation", treeHash, bits)
}

// Get returns the cached result and whether it was found.
func (c *ResultCache) Get(ctx context.Context, treeHash string, policy models.Policy) (*models.ValidationResult, bool, error) {
	key := CacheKey(c.prefix, treeHash, policy)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("cache_key", key).Warn("failed to read validation result from cache")
		return nil, false, fmt.Errorf("error reading cache key %s: %w", key, err)
	}

	var result models.ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("cache_key", key).Warn("dropping undecodable cache entry")
		_ = c.rdb.Del(ctx, key).Err()
		return nil, false, nil
	}
	return &result, true, nil
}

func (c *ResultCache) Set(ctx context.Context, treeHash string, policy models.Policy, result models.ValidationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error encoding validation result: %w", err)
	}
	key := CacheKey(c.prefix, treeHash, policy)
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("cache_key", key).Warn("failed to write validation result to cache")
		return fmt.Errorf("error writing cache key %s: %w", key, err)
	}
	return nil
}
