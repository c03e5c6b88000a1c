package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared cache backend. All errors are swallowed after
// logging so an unhealthy Redis degrades to a cold cache, never to a
// failing request.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis cache from a URL like
// redis://localhost:6379/0. It does not dial eagerly; a dead server
// shows up as misses at request time.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Debug("cache get failed", "error", err)
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.SetEx(ctx, key, value, r.ttl).Err(); err != nil {
		slog.Debug("cache set failed", "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.Debug("cache delete failed", "error", err)
	}
}

// Clear is a no-op: flushing a shared Redis would take out other
// tenants' keys along with ours.
func (r *Redis) Clear(_ context.Context) {}

func (r *Redis) Close() error {
	return r.client.Close()
}
