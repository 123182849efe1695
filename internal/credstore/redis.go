package credstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists credentials under two Redis keys, mirroring the token and user
// entries of browser storage. Writes and deletes run inside MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tripledger"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) tokenKey() string {
	return s.prefix + ":auth:token"
}

func (s *RedisStore) userKey() string {
	return s.prefix + ":auth:user"
}

// Save writes both keys in one transaction. An empty profile removes the user key.
func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if creds.Token == "" {
			pipe.Del(ctx, s.tokenKey())
		} else {
			pipe.Set(ctx, s.tokenKey(), creds.Token, 0)
		}
		if len(creds.Profile) == 0 {
			pipe.Del(ctx, s.userKey())
		} else {
			pipe.Set(ctx, s.userKey(), creds.Profile, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: redis save: %w", err)
	}
	return nil
}

// Load reads both keys with a single MGET.
func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	values, err := s.client.MGet(ctx, s.tokenKey(), s.userKey()).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("credstore: redis load: %w", err)
	}
	var creds Credentials
	if len(values) > 0 {
		if token, ok := values[0].(string); ok {
			creds.Token = token
		}
	}
	if len(values) > 1 {
		if user, ok := values[1].(string); ok && user != "" {
			creds.Profile = []byte(user)
		}
	}
	return creds, nil
}

// Clear deletes both keys.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey(), s.userKey()).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("credstore: redis clear: %w", err)
	}
	return nil
}
