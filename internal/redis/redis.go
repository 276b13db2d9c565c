package redis

import (
	"authclient/internal/storage"
	"authclient/pkg/client/redis"
	"context"
	"errors"
	"fmt"
	redis2 "github.com/redis/go-redis/v9"
	"time"
)

const keyPrefix = "authclient"

type repositoryRedis struct {
	Client    redis.Client
	Namespace string
	TTL       time.Duration
}

// NewRepositoryRedis keeps session keys under authclient:<namespace>:<key>.
// A zero ttl keeps keys until they are deleted.
func NewRepositoryRedis(client redis.Client, namespace string, ttl time.Duration) storage.Storage {
	if namespace == "" {
		namespace = "default"
	}
	return &repositoryRedis{Client: client, Namespace: namespace, TTL: ttl}
}

func (r *repositoryRedis) key(k string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, r.Namespace, k)
}

func (r *repositoryRedis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.Client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis2.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *repositoryRedis) Set(ctx context.Context, key string, value string) error {
	if err := r.Client.Set(ctx, r.key(key), value, r.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *repositoryRedis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	err := r.Client.Del(ctx, full...).Err()
	if err != nil && !errors.Is(err, redis2.Nil) {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
