package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps keys in redis, for devices that share one identity
// across several processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.Prefix}, nil
}

func (s *RedisStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get from redis: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.buildKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
