// Package cache holds short-lived coordination state in Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const callbackKeyPrefix = "payment:callback:"

// Client is the subset of redis.Cmdable the guard uses
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient creates a Redis client and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// RedisCallbackGuard marks a transaction as in flight while a gateway
// notification for it is being processed. Duplicate notifications that arrive
// meanwhile are turned away early; the database row lock still decides
// correctness when Redis is unavailable.
type RedisCallbackGuard struct {
	client Client
	ttl    time.Duration
}

// NewRedisCallbackGuard creates a guard whose marks expire after ttl
func NewRedisCallbackGuard(client Client, ttl time.Duration) *RedisCallbackGuard {
	return &RedisCallbackGuard{client: client, ttl: ttl}
}

// Acquire returns false when another notification for transactionID is in flight
func (g *RedisCallbackGuard) Acquire(ctx context.Context, transactionID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, callbackKeyPrefix+transactionID, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire callback guard: %w", err)
	}
	return ok, nil
}

// Release clears the in-flight mark
func (g *RedisCallbackGuard) Release(ctx context.Context, transactionID string) error {
	if err := g.client.Del(ctx, callbackKeyPrefix+transactionID).Err(); err != nil {
		return fmt.Errorf("failed to release callback guard: %w", err)
	}
	return nil
}

// NoopCallbackGuard always admits. Used when Redis is disabled.
type NoopCallbackGuard struct{}

func (NoopCallbackGuard) Acquire(context.Context, string) (bool, error) { return true, nil }

func (NoopCallbackGuard) Release(context.Context, string) error { return nil }
