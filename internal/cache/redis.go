package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on a go-redis client.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Connect dials Redis at a redis:// URL and verifies the connection.
func Connect(ctx context.Context, redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

// Close releases the underlying client's connections.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (b *RedisBackend) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.client.SetEx(ctx, key, value, ttl).Err()
}

// Keys uses SCAN rather than KEYS so a large keyspace never blocks the server.
func (b *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (b *RedisBackend) Del(ctx context.Context, keys ...string) error {
	return b.client.Del(ctx, keys...).Err()
}

// ExpireAll pipelines one EXPIRE per key into a single round trip.
func (b *RedisBackend) ExpireAll(ctx context.Context, keys []string, ttl time.Duration) error {
	pipe := b.client.Pipeline()
	for _, key := range keys {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Info(ctx context.Context) (string, error) {
	return b.client.Info(ctx).Result()
}
