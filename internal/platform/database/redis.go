package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis and verifies the connection with PING.
// It returns (nil, nil) when no address is configured.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Address, err)
	}
	return rdb, nil
}
