// Package lock provides a cross-process run lock so several instances can
// share one schedule without overlapping.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key used when none is configured.
const DefaultKey = "freshrss-filter:run-lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock held in a single Redis key with an expiry.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis connects to the Redis server at url. A value that does not
// parse as a redis:// URL is used as a host:port address.
func NewRedis(url, key string, ttl time.Duration) *Redis {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: redis.NewClient(opt), key: key, ttl: ttl}
}

// Acquire tries to take the lock. ok is false when another holder has it.
func (r *Redis) Acquire(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	err := r.client.SetArgs(ctx, r.key, token, redis.SetArgs{Mode: "NX", TTL: r.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", r.key, err)
	}
	return token, true, nil
}

// Release drops the lock if it is still held with token.
func (r *Redis) Release(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", r.key, err)
	}
	return nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
