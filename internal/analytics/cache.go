package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps computed dashboards in Redis. Keys are scoped to the signed-in viewer. Each trip
// and each viewer has a version counter; bumping either orphans every key built with the old
// value.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "tripledger"
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) versionKey(scope string, id int64) string {
	return strings.Join([]string{c.prefix, "analytics", scope, strconv.FormatInt(id, 10), "version"}, ":")
}

// Version returns the trip's cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context, tripID int64) (int64, error) {
	return c.version(ctx, "trip", tripID)
}

// ViewerVersion returns the viewer's cache version, initialising it when missing.
func (c *Cache) ViewerVersion(ctx context.Context, userID int64) (int64, error) {
	return c.version(ctx, "user", userID)
}

func (c *Cache) version(ctx context.Context, scope string, id int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := c.versionKey(scope, id)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key for what viewerID sees of the trip, stamped with the current
// trip and viewer versions.
func (c *Cache) BuildKey(ctx context.Context, viewerID, tripID int64, parts ...string) (string, error) {
	base := append([]string{
		c.prefixOrDefault(), "analytics", "trip", strconv.FormatInt(tripID, 10),
		"user", strconv.FormatInt(viewerID, 10),
	}, parts...)
	if c == nil || c.client == nil {
		return strings.Join(base, ":"), nil
	}
	tripVer, err := c.Version(ctx, tripID)
	if err != nil {
		return "", err
	}
	viewerVer, err := c.ViewerVersion(ctx, viewerID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d.%d", strings.Join(base, ":"), tripVer, viewerVer), nil
}

func (c *Cache) prefixOrDefault() string {
	if c == nil || c.prefix == "" {
		return "tripledger"
	}
	return c.prefix
}

// FetchJSON loads a cached value into dest or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("analytics: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// TripChanged invalidates every cached value of the trip. It implements trips.ChangeNotifier.
func (c *Cache) TripChanged(ctx context.Context, tripID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey("trip", tripID)).Err()
}

// ForgetViewer invalidates every cached value built for userID. Call it when the user signs
// out or the session changes hands.
func (c *Cache) ForgetViewer(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey("user", userID)).Err()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
