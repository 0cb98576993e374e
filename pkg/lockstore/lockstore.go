// Package lockstore holds short-lived, holder-tagged exclusive locks.
// A lock is a key whose value names the holder; it expires on its own after the TTL.
package lockstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still belongs to the caller,
// so an expired-then-reacquired lock is never removed by its previous holder.
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

// Redis is a lock store backed by a single Redis instance
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}
	return &Redis{client: client}, nil
}

// Acquire sets key to value with ttl if and only if key is absent.
// The write and the expiry are one command, so a crash can never leave a lock without a TTL.
func (r *Redis) Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "acquire lock %s", key)
	}
	return ok, nil
}

// Get returns the current holder of key
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get lock %s", key)
	}
	return v, true, nil
}

// Release deletes key if it is still held by value
func (r *Redis) Release(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		return false, errors.Wrapf(err, "release lock %s", key)
	}
	return n == 1, nil
}

// Delete unconditionally removes key
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "delete lock %s", key)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
