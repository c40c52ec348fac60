// Package broadcast implements the one-slot rendezvous of spec.md §4.6:
// a queue consumer writes the latest broadcast message into a single
// well-known key, and a high-priority polling job in the gateway process
// reads and clears it on a fixed tick.
package broadcast

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the slice of a key-value store the broadcast slot needs. Narrowed
// to an interface so FanoutLoop/ConsumerLoop can be tested against a
// fake instead of a live Redis instance.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV wraps go-redis, the driver original_source/.go_lang/Common/config/redis.go
// uses for exactly this slot.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr, password string, db int) *RedisKV {
	return NewRedisKVWithTLS(addr, password, db, nil)
}

// NewRedisKVWithTLS is NewRedisKV plus an optional *tls.Config, the Go
// stand-in for the source's TLSOptions passed into RedisClient.
func NewRedisKVWithTLS(addr, password string, db int, tlsConfig *tls.Config) *RedisKV {
	return &RedisKV{client: redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  password,
		DB:        db,
		TLSConfig: tlsConfig,
	})}
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis GET failed: %w", err)
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
