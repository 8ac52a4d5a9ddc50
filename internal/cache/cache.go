// Package cache memoises analysis results for identical inputs. It is an
// optimisation only; every failure degrades to a cache miss.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"go-eye-inspector/internal/logger"
	"go-eye-inspector/pkg/models"
)

// Cache stores fusion results by key
type Cache interface {
	Get(ctx context.Context, key string) (*models.FusionResult, bool)
	Set(ctx context.Context, key string, result models.FusionResult)
	Close() error
}

// Key builds the cache key for an image digest and an options fingerprint.
func Key(imageSHA1, fingerprint string) string {
	return "analysis:" + imageSHA1 + ":" + fingerprint
}

// Fingerprint hashes the JSON form of v. Map keys are sorted by
// encoding/json, so equal values give equal fingerprints.
func Fingerprint(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "unhashable"
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:8])
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*models.FusionResult, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, models.FusionResult) {}
func (NoopCache) Close() error { return nil }

// RedisCache keeps JSON-encoded results in Redis with a TTL
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects lazily; a dead server only produces misses.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return NewRedisCacheWithClient(client, ttl)
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Ping checks connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.FusionResult, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Cache read failed")
		return nil, false
	}

	var result models.FusionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result models.FusionResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		logger.Component("cache").WithError(err).Warn("Cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
