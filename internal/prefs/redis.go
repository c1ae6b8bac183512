package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding all preferences.
const DefaultRedisKey = "muezzin:prefs"

// RedisSource stores preferences as fields of a single Redis hash.
//
// Redis keeps every field as a string, so values read back always arrive as
// Text and go through the string decode strategies.
type RedisSource struct {
	client redis.Cmdable
	key    string
}

// RedisOptions configures NewRedisSource.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(ctx context.Context, opts RedisOptions) (*RedisSource, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return NewRedisSourceFromClient(client, opts.Key), client, nil
}

// NewRedisSourceFromClient wraps an existing client.
func NewRedisSourceFromClient(client redis.Cmdable, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Lookup implements Source.
func (r *RedisSource) Lookup(ctx context.Context, field string) (any, bool, error) {
	v, err := r.client.HGet(ctx, r.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget %s: %w", field, err)
	}
	return v, true, nil
}

// Set implements Writer.
func (r *RedisSource) Set(ctx context.Context, field string, value any) error {
	if err := r.client.HSet(ctx, r.key, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", field, err)
	}
	return nil
}

// All implements Lister.
func (r *RedisSource) All(ctx context.Context) (map[string]any, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}
