// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/localmart/localmart/internal/config"
)

const redisProbeTimeout = 5 * time.Second

// Redis backs rate limiting and magic-link tokens. Nothing in it is the
// source of truth, so losing it only signs out pending magic links.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := &Redis{Client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close() //nolint:errcheck
		return nil, err
	}
	return r, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisProbeTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// OneTimeStore keeps short-lived single-use values such as magic-link
// tokens. Take deletes on read so a value can be redeemed once.
type OneTimeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, error)
}

type redisOneTimeStore struct {
	client redis.Cmdable
	prefix string
}

func NewOneTimeStore(client redis.Cmdable, prefix string) OneTimeStore {
	return &redisOneTimeStore{client: client, prefix: prefix}
}

func (s *redisOneTimeStore) Put(
	ctx context.Context,
	key, value string,
	ttl time.Duration,
) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store one-time value: %w", err)
	}
	return nil
}

func (s *redisOneTimeStore) Take(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("take one-time value: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("take one-time value: %w", err)
	}
	return val, nil
}
