package app

import (
	"context"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// NewRedisClient builds a go-redis client from cfg and validates connectivity.
func NewRedisClient(ctx context.Context, cfg Config) (*backend.Client, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
