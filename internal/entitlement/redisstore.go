package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	proKeyPrefix      = "pro:"
	customerKeyPrefix = "customer:"
)

// RedisStore keeps each device's Pro flag and customer ID as independent
// keys (pro:<deviceID>, customer:<deviceID>). Writes are single-key SET/DEL
// operations, atomic at the cache level, so there is no whole-object
// read-modify-write race and the store is safe for any number of serving
// instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the key-value cache at redisURL
// (redis://[:password@]host:port[/db]).
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client (shared with the usage
// limiter, and injected in tests).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying connection so the usage limiter can share
// it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) ProStatus(ctx context.Context, deviceID string) (bool, error) {
	val, err := s.client.Get(ctx, proKeyPrefix+deviceID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pro status: %w", err)
	}
	return val == "1", nil
}

func (s *RedisStore) SetProStatus(ctx context.Context, deviceID string, isPro bool) error {
	val := "0"
	if isPro {
		val = "1"
	}
	if err := s.client.Set(ctx, proKeyPrefix+deviceID, val, 0).Err(); err != nil {
		return fmt.Errorf("set pro status: %w", err)
	}
	return nil
}

func (s *RedisStore) CustomerID(ctx context.Context, deviceID string) (string, error) {
	val, err := s.client.Get(ctx, customerKeyPrefix+deviceID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get customer id: %w", err)
	}
	if val == "" {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *RedisStore) SetCustomerID(ctx context.Context, deviceID, customerID string) error {
	if err := s.client.Set(ctx, customerKeyPrefix+deviceID, customerID, 0).Err(); err != nil {
		return fmt.Errorf("set customer id: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
