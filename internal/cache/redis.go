package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "smokefree:assessment:fp:"

// Redis is the ResultCache shared by every API instance.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis parses a redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("cache: get %s: %w", fingerprint, err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("cache: corrupt value for %s: %w", fingerprint, err)
	}
	return id, true, nil
}

// Set keeps the first assessment ID written for a fingerprint until it
// expires, so two racing submits converge on the same row.
func (r *Redis) Set(ctx context.Context, fingerprint string, assessmentID uuid.UUID) error {
	if err := r.client.SetNX(ctx, keyPrefix+fingerprint, assessmentID.String(), r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", fingerprint, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
