package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/talk-less/talkless/internal/observability"
)

// Cache is the content cache consulted before refetching an article body.
// Implementations must be safe for concurrent use. Callers treat every
// error as a miss; cache failures never fail a fetch.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// NopCache is used when CACHE_URL is unset.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set drops the value.
func (NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Close is a no-op.
func (NopCache) Close() error { return nil }

// RedisCache backs the content cache with Redis.
type RedisCache struct {
	client    *redis.Client
	opTimeout time.Duration
	logger    *zerolog.Logger
}

// NewRedisCache creates a cache from a redis URL (CACHE_URL). The op
// timeout bounds every cache call so a slow backend cannot stall fetches.
func NewRedisCache(url string, opTimeout time.Duration, logger *zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return &RedisCache{
		client:    redis.NewClient(opts),
		opTimeout: opTimeout,
		logger:    logger,
	}, nil
}

// Get returns the cached value for key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheOps.WithLabelValues(observability.CacheOpGet, observability.OutcomeMiss).Inc()
		return nil, false, nil
	}

	if err != nil {
		observability.CacheOps.WithLabelValues(observability.CacheOpGet, observability.OutcomeError).Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed, bypassing cache")

		return nil, false, err
	}

	observability.CacheOps.WithLabelValues(observability.CacheOpGet, observability.OutcomeHit).Inc()

	return val, true, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		observability.CacheOps.WithLabelValues(observability.CacheOpSet, observability.OutcomeError).Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")

		return err
	}

	observability.CacheOps.WithLabelValues(observability.CacheOpSet, observability.OutcomeOK).Inc()

	return nil
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
