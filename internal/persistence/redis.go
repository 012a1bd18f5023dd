package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
)

// ErrRedisNotConfigured is returned by Ping when no client was created.
var ErrRedisNotConfigured = errors.New("redis client not configured")

// Redis wraps the go-redis client shared by the limiter and the token denylist.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis. When required is false an unreachable server
// is only logged, since nothing on the request path depends on it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, required bool, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		if required {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
		}
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Redis{Client: client}, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisNotConfigured
	}
	return r.Client.Ping(ctx).Err()
}
