// Package cache wraps the external credential cache shared with the site:
// the site writes "chat-key-<ukey>" entries, the chat server only reads.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a thin read-only client over the shared key store.
type Redis struct {
	client *redis.Client
}

// NewRedis builds the client. The connection is established lazily; a
// down cache surfaces as an infrastructure error on first Get.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Get fetches a value, returning ok=false on a plain miss and a non-nil
// error only for infrastructure failures.
func (r *Redis) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, true, nil
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}
