// Package cache opens the Redis connection shared by the credential store and the
// analytics cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options describes the Redis server to use.
type Options struct {
	Addr     string
	Password string
	DB       int
	// PingTimeout bounds the reachability check in Connect. Zero means 5s.
	PingTimeout time.Duration
}

// Connect dials Redis and returns the client once the server answers a PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("cache: redis address required")
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis at %s unreachable: %w", opts.Addr, err)
	}
	return client, nil
}
