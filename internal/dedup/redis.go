package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache shared between processes. Expiry is delegated to
// Redis key TTLs, so entries survive a monitor restart.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a Redis backed cache. A non-positive ttl uses
// DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, prefix string) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "dedup"
	}
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) key(identifier, destination string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, destination, identifier)
}

// Exists reports whether the pair key is present.
func (c *RedisCache) Exists(ctx context.Context, identifier, destination string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(identifier, destination)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Add sets the pair key with the cache TTL.
func (c *RedisCache) Add(ctx context.Context, identifier, destination string) error {
	if err := c.client.Set(ctx, c.key(identifier, destination), time.Now().UnixMilli(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ Cache = (*RedisCache)(nil)
