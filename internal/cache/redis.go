package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"time"
)

const redisTimeout = 2 * time.Second

// RedisCache shares entries between processes. Values are stored as JSON with
// a server-side expiry, so a read can never see a stale entry. Redis errors
// are logged and reported as misses.
type RedisCache[K comparable, V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisCache[K comparable, V any](client *redis.Client, prefix string, ttl time.Duration, logger *log.Logger) *RedisCache[K, V] {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisCache[K, V]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.WithPrefix("redis"),
	}
}

func (c *RedisCache[K, V]) key(key K) string {
	return fmt.Sprintf("%s%v", c.prefix, key)
}

func (c *RedisCache[K, V]) Get(key K) (V, bool) {
	var value V

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", "key", c.key(key), "err", err)
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("cache entry could not be decoded", "key", c.key(key), "err", err)
		var zero V
		return zero, false
	}
	return value, true
}

func (c *RedisCache[K, V]) Put(key K, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache entry could not be encoded", "key", c.key(key), "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", c.key(key), "err", err)
	}
}

func (c *RedisCache[K, V]) Name() string {
	return "Redis"
}

func (c *RedisCache[K, V]) SelfCheck() (bool, string) {
	if c.client == nil {
		return false, "no redis client configured"
	}
	return true, ""
}

func (c *RedisCache[K, V]) HealthCheck() (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return false, err.Error()
	}
	return true, ""
}
