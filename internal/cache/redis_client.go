package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
)

// DefaultSummaryTTL keeps commit summaries for a week; a commit's diff never changes
const DefaultSummaryTTL = 7 * 24 * time.Hour

// RedisClient wraps a Redis client with JSON caching helpers.
// It backs the shared summary cache and the LLM quota limiter.
type RedisClient struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	prefix string
}

// NewRedisClient connects to addr ("host:port") and pings it
func NewRedisClient(ctx context.Context, addr, password string) (*RedisClient, error) {
	if addr == "" {
		return nil, apperrors.ConfigError("redis address missing")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	// Fail fast so callers can fall back to running without Redis
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, apperrors.Wrapf(err, apperrors.KindExternal, "connect to redis at %s", addr)
	}

	logger := slog.Default().With("component", "redis")
	logger.Debug("redis client connected", "addr", addr)

	return &RedisClient{
		client: client,
		logger: logger,
		ttl:    DefaultSummaryTTL,
		prefix: "gitbuddy",
	}, nil
}

// Redis exposes the underlying client for the quota limiter
func (c *RedisClient) Redis() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if err := c.client.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.KindExternal, "close redis client")
	}
	return nil
}

// HealthCheck verifies Redis connectivity
func (c *RedisClient) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.KindExternal, "redis health check")
	}
	return nil
}

// Get unmarshals the cached value into target.
// A miss returns false with no error.
func (c *RedisClient) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrapf(err, apperrors.KindExternal, "redis get %s", key)
	}

	if err := json.Unmarshal([]byte(val), target); err != nil {
		return false, apperrors.Wrapf(err, apperrors.KindInternal, "decode cached value %s", key)
	}

	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

// Set stores value with the default TTL
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores value as JSON with a custom TTL
func (c *RedisClient) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.KindInternal, "encode value %s", key)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return apperrors.Wrapf(err, apperrors.KindExternal, "redis set %s", key)
	}

	c.logger.Debug("cache set", "key", key, "ttl", ttl)
	return nil
}

// Delete removes a key
func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Wrapf(err, apperrors.KindExternal, "redis delete %s", key)
	}
	return nil
}

// DeletePattern deletes every key matching pattern.
// Patterns must stay inside the gitbuddy namespace.
func (c *RedisClient) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if !strings.HasPrefix(pattern, c.prefix+":") {
		return 0, apperrors.InvalidArgument(fmt.Sprintf("pattern %q is outside the %s namespace", pattern, c.prefix))
	}

	var cursor uint64
	var keys []string
	for {
		var batch []string
		var err error
		batch, cursor, err = c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, apperrors.Wrapf(err, apperrors.KindExternal, "redis scan %s", pattern)
		}
		keys = append(keys, batch...)
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.KindExternal, "redis delete %s", pattern)
	}

	c.logger.Info("cache pattern delete", "pattern", pattern, "deleted", deleted)
	return deleted, nil
}

// CacheKey builds "gitbuddy:kind:part1:part2..."
func CacheKey(kind string, parts ...string) string {
	return strings.Join(append([]string{"gitbuddy", kind}, parts...), ":")
}

// SummaryCacheKey keys a file summary by commit and path
// Example: "gitbuddy:summary:abc123:src/main.go"
func SummaryCacheKey(sha, filename string) string {
	return CacheKey("summary", sha, filename)
}
