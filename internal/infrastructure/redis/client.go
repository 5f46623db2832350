package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/config"
	red "github.com/redis/go-redis/v9"
)

// NewClient opens a Redis connection pool and pings it once.
func NewClient(ctx context.Context, cfg *config.Config) (*red.Client, error) {
	client := red.NewClient(&red.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
