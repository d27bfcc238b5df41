// Package redisdb holds the Redis-backed stores: the time-indexed payment
// ledger and the idempotency claim registry.
package redisdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client against the configured endpoint and verifies
// connectivity with a ping.
func Connect(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("connecting to redis", "endpoint", cfg.Endpoint)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Endpoint,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.PoolSize / 4,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Endpoint, err)
	}

	logger.Info("successfully connected to redis", "pool_size", cfg.PoolSize)

	return client, nil
}
