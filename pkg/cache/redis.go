package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a Cache backed by a Redis instance, for deployments where the
// service runs more than one replica and cache invalidations must be seen
// by all of them. Values are stored as JSON; a SET of the whole value is
// atomic per key.
type Redis[V any] struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	counters counters
}

// RedisOptions configures a Redis-backed cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces this cache's keys within the Redis keyspace.
	Prefix string
	TTL    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis[V any](ctx context.Context, opts RedisOptions) (*Redis[V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &Redis[V]{client: client, prefix: opts.Prefix, ttl: ttl}, nil
}

// Client exposes the underlying connection, for health checks.
func (r *Redis[V]) Client() *redis.Client { return r.client }

// NewRedisWithClient wraps an existing client; used by tests with miniredis.
func NewRedisWithClient[V any](client *redis.Client, prefix string, ttl time.Duration) *Redis[V] {
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &Redis[V]{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis[V]) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Get returns the cached value for key. A corrupt entry is treated as a
// miss and removed rather than surfaced; the backing store is the source of
// truth and will repopulate it.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		r.counters.miss()
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		r.counters.miss()
		r.client.Del(ctx, r.key(key))
		return zero, false, nil
	}
	r.counters.hit()
	return value, true, nil
}

// Put stores value under key with the configured TTL.
func (r *Redis[V]) Put(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the entry for key.
func (r *Redis[V]) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Stats returns hit/miss counters for this process.
func (r *Redis[V]) Stats() Stats {
	return r.counters.stats()
}

// Close closes the underlying Redis connection.
func (r *Redis[V]) Close() error {
	return r.client.Close()
}
