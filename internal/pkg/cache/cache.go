package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
)

// NewClient creates the Redis client. An unreachable server is logged, not fatal:
// callers degrade to running without leases and report redis as disconnected.
func NewClient(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.CacheHost, cfg.CachePort),
		Password: cfg.CachePassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to redis at %s:%s: %v", cfg.CacheHost, cfg.CachePort, err)
	} else {
		log.Infof("[Cache] Successfully connected to redis: %s", pong)
	}
	return client
}

// Status reports "connected", "disconnected" or "not_configured" for health output.
func Status(ctx context.Context, client *redis.Client) string {
	if client == nil {
		return "not_configured"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return "disconnected"
	}
	return "connected"
}
