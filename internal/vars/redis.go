package vars

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "wydy:vars"

// RedisStore keeps variables in a single redis hash so several responders can
// share them.
type RedisStore struct {
	client *backend.Client
	key    string
}

// NewRedis dials a redis server lazily.
func NewRedis(addr, password string, db int, key string) *RedisStore {
	return NewRedisFromClient(backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), key)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Snapshot(ctx context.Context) (Snapshot, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read vars hash %s: %w", s.key, err)
	}
	return Snapshot(values), nil
}

// Set stores one variable.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("write var %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
