// Package cache wraps go-redis for JSON caching with graceful degradation:
// when Redis is not configured or unreachable every read is a miss and
// every write is a no-op, so callers never need to special-case it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-mentor-match/internal/config"
)

// ErrUnavailable is returned by Ping when no Redis client is connected.
var ErrUnavailable = errors.New("redis unavailable")

// Redis is a nil-safe JSON cache.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration

	warnedUnavailable atomic.Bool
}

// NewRedis connects using cfg. An empty Addr, or a failed initial ping,
// yields a bypassing cache rather than an error.
func NewRedis(ctx context.Context, cfg config.RedisConfig) *Redis {
	r := &Redis{defaultTTL: cfg.TTL}
	if strings.TrimSpace(cfg.Addr) == "" {
		log.Info().Msg("redis not configured, discovery cache disabled")
		return r
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, bypassing cache")
		_ = client.Close()
		return r
	}
	r.client = client
	return r
}

// NewRedisWithClient wraps an existing client; used by tests and callers that
// manage the connection themselves.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, defaultTTL: ttl}
}

// Enabled reports whether a Redis client is connected.
func (r *Redis) Enabled() bool { return r != nil && r.client != nil }

func (r *Redis) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		log.Warn().Err(err).Msg("redis error, cache degraded")
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return ErrUnavailable
	}
	return r.client.Ping(ctx).Err()
}

// GetJSON decodes the value at key into out. found is false on a miss or
// when the cache is disabled.
func (r *Redis) GetJSON(ctx context.Context, key string, out any) (found bool, err error) {
	if !r.Enabled() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value at key. A non-positive ttl uses the configured default.
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if !r.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// DeleteByPattern removes every key matching a glob pattern using SCAN.
func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) error {
	if !r.Enabled() {
		return nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if err := r.client.Del(ctx, k).Err(); err != nil {
			log.Warn().Err(err).Str("key", k).Str("pattern", pattern).Msg("redis delete failed")
		}
	}
	return iter.Err()
}

func (r *Redis) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
