// internal/pkg/session/redis_store.go
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores session keys under pipx:session:<profile>:<key>.
// Entries have no TTL; expiry is decided from the token itself.
type RedisBackend struct {
	client  *redis.Client
	profile string
}

var (
	_ Backend     = (*RedisBackend)(nil)
	_ BulkDeleter = (*RedisBackend)(nil)
)

func NewRedisBackend(client *redis.Client, profile string) *RedisBackend {
	if profile == "" {
		profile = "default"
	}
	return &RedisBackend{client: client, profile: profile}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.sessionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.sessionKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.sessionKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// DeleteMany removes all keys with a single DEL.
func (r *RedisBackend) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.sessionKey(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) sessionKey(key string) string {
	return fmt.Sprintf("pipx:session:%s:%s", r.profile, key)
}
