// Package cli implements the tripledger command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/tripledger/tripledger/internal/analytics"
	"github.com/tripledger/tripledger/internal/api"
	"github.com/tripledger/tripledger/internal/app"
	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/credstore"
	"github.com/tripledger/tripledger/internal/observability"
	"github.com/tripledger/tripledger/internal/platform/cache"
	"github.com/tripledger/tripledger/internal/session"
	"github.com/tripledger/tripledger/internal/trips"
)

// Env carries the wired components shared by every command.
type Env struct {
	Config  *app.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	Store     credstore.Store
	Client    *api.Client
	Auth      *auth.Service
	Trips     *trips.Service
	Analytics *analytics.Service

	Prompter Prompter
	Stdout   io.Writer
	Stderr   io.Writer

	// OpenURL shows the user a URL to visit. The default prints it.
	OpenURL func(url string) error

	redis   *redis.Client
	closers []func() error
}

// NewEnv wires the client stack from cfg.
func NewEnv(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Env, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env := &Env{
		Config:   cfg,
		Logger:   logger,
		Metrics:  observability.NewMetrics(),
		Prompter: NewTerminalPrompter(os.Stdin, os.Stderr),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	env.OpenURL = func(url string) error {
		_, err := fmt.Fprintf(env.Stderr, "Open this URL in your browser to continue:\n\n  %s\n\n", url)
		return err
	}

	var redisClient *redis.Client
	if cfg.Store == app.StoreRedis {
		client, err := cache.Connect(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		redisClient = client
		env.redis = client
		env.closers = append(env.closers, client.Close)
	}

	store, err := openStore(cfg, redisClient)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	env.Store = store

	client, err := api.New(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
		Metrics: env.Metrics,
	})
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	env.Client = client
	env.wireServices()
	return env, nil
}

// wireServices builds the services on top of Client and Store. Calling it again rebuilds
// them, which is how a swapped Store takes effect.
func (e *Env) wireServices() {
	var statsCache *analytics.Cache
	if e.redis != nil {
		statsCache = analytics.NewCache(e.redis, e.Config.RedisPrefix, e.Config.CacheTTL)
	}
	e.Auth = auth.NewService(e.Client, e.Store, auth.Options{
		Logger:    e.Logger,
		Metrics:   e.Metrics,
		Bootstrap: bootstrapOptions(e.Config),
		OnSignOut: func(ctx context.Context, userID int64) {
			if err := statsCache.ForgetViewer(ctx, userID); err != nil {
				e.Logger.Warn("forget cached analytics", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		},
	})
	var notifier trips.ChangeNotifier
	if statsCache != nil {
		notifier = statsCache
	}
	e.Trips = trips.NewService(e.Client, notifier, e.Logger)
	e.Analytics = analytics.NewService(e.Trips, statsCache)
}

func bootstrapOptions(cfg *app.Config) session.Options {
	grace := cfg.OAuthGrace
	if grace == 0 {
		grace = -1
	}
	return session.Options{
		GracePeriod:   grace,
		LookupTimeout: cfg.OAuthLookupTimeout,
	}
}

func openStore(cfg *app.Config, redisClient *redis.Client) (credstore.Store, error) {
	switch cfg.Store {
	case app.StoreMemory:
		return credstore.NewMemoryStore(), nil
	case app.StoreRedis:
		if redisClient == nil {
			return nil, errors.New("cli: redis store needs a redis connection")
		}
		return credstore.NewRedisStore(redisClient, cfg.RedisPrefix), nil
	default:
		return credstore.NewFileStore(cfg.StorePath, cfg.StorePassphrase)
	}
}

// Close releases connections opened by NewEnv.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// requireSession resolves the session and fails with auth.ErrNotSignedIn when there is none.
func (e *Env) requireSession(ctx context.Context) (session.Session, error) {
	out := e.Auth.Bootstrap(ctx, nil)
	if out.Kind == session.OutcomeFailed {
		return session.Session{}, out.Err
	}
	sess, ok := e.Auth.Session()
	if !ok {
		return session.Session{}, auth.ErrNotSignedIn
	}
	if out.Cached {
		e.Logger.Warn("backend unreachable, using cached profile")
	}
	return sess, nil
}
