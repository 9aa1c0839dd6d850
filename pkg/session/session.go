// Package session keeps server-side login sessions. A session maps an opaque
// id to a username; account data is always re-read from the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bedmatch/pkg/config"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrNoSession = errors.New("session not found or expired")

// Store persists sessions
type Store interface {
	Create(ctx context.Context, username string) (string, error)
	Lookup(ctx context.Context, id string) (string, error)
	Destroy(ctx context.Context, id string) error
	Close() error
}

// NewID returns a fresh random session id
func NewID() string {
	return uuid.NewString()
}

// Open builds the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.SessionConfig, ttl time.Duration) (Store, error) {
	switch cfg.Driver {
	case config.SessionMemory:
		return NewMemoryStore(ttl), nil
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisStore(client, ttl), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.Driver)
	}
}
