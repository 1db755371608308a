package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "flowstack:execution:"

// RedisStore persists execution records as JSON values in Redis, for
// deployments where run status must survive a process restart or be visible
// to more than one instance. Records expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, e *Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding execution %s: %w", e.ID, err)
	}
	ok, err := s.client.SetNX(ctx, redisKey(e.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("storing execution %s: %w", e.ID, err)
	}
	if !ok {
		return fmt.Errorf("execution id %q already exists", e.ID)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Execution, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading execution %s: %w", id, err)
	}
	var e Execution
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding execution %s: %w", id, err)
	}
	return &e, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, e *Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding execution %s: %w", e.ID, err)
	}
	ok, err := s.client.SetXX(ctx, redisKey(e.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("updating execution %s: %w", e.ID, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
