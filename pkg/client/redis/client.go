package redis

import (
	"authclient/internal/config"
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

// Client is the subset of go-redis the session storage needs.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewClient(ctx context.Context, maxAttempts int, sc config.StorageRedis) (client *redis.Client, err error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	err = doWithTries(func() error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", sc.Host, sc.Port),
			Username: sc.Username,
			Password: sc.Password,
			DB:       sc.DB,
		})

		_, err := client.Ping(ctx).Result()
		if err != nil {
			_ = client.Close()
			return err
		}
		return nil
	}, maxAttempts, 2*time.Second)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxAttempts, err)
	}

	return client, nil
}

func doWithTries(fn func() error, attempts int, delay time.Duration) (err error) {
	for attempts > 0 {
		if err = fn(); err != nil {
			attempts--
			if attempts > 0 {
				time.Sleep(delay)
			}
			continue
		}
		return nil
	}
	return
}
