package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/repository"
)

const keyPrefix = "cart:"

// Provider keeps each slot under cart:<key> with a TTL that is refreshed on
// every write, so abandoned carts expire on their own.
type Provider struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProvider creates a Redis-backed slot provider.
func NewProvider(client *redis.Client, ttl time.Duration) *Provider {
	return &Provider{client: client, ttl: ttl}
}

// Open returns the slot for key.
func (p *Provider) Open(key string) repository.Slot {
	return &slot{client: p.client, key: keyPrefix + key, ttl: p.ttl}
}

// Ping checks the Redis connection.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Name returns "redis".
func (p *Provider) Name() string { return "redis" }

type slot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (s *slot) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

func (s *slot) Store(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
