// Package session resolves whether the user is signed in when the application starts.
//
// A Bootstrapper reconciles three entry states into one Outcome:
//
//   - the entry URL carries a bearer token from an OAuth round-trip (token=...),
//   - the entry URL carries an authorization code the backend is still exchanging (code=...&state=...),
//   - neither, in which case the stored token, if any, is checked against the backend.
//
// The in-memory Session it returns is authoritative for the rest of the run; the
// credstore.Store is only its durable copy.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tripledger/tripledger/internal/api"
	"github.com/tripledger/tripledger/internal/credstore"
	"github.com/tripledger/tripledger/internal/observability"
	"github.com/tripledger/tripledger/internal/platform/httpx"
)

// State is a step of the bootstrap state machine.
type State int

// Bootstrap states. Authenticated, Unauthenticated and Failed are terminal.
const (
	StateInit State = iota
	StateResolvingOAuthRedirect
	StateResolvingStoredToken
	StateAuthenticated
	StateUnauthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResolvingOAuthRedirect:
		return "resolving_oauth_redirect"
	case StateResolvingStoredToken:
		return "resolving_stored_token"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Default timings for the authorization-code path.
const (
	DefaultGracePeriod   = 3 * time.Second
	DefaultLookupTimeout = 10 * time.Second
)

// UserLookup is the part of the API client the bootstrapper needs.
type UserLookup interface {
	CurrentUser(ctx context.Context, token string) (*api.Response, error)
	OAuthUser(ctx context.Context) (*api.Response, error)
}

// Options tunes a Bootstrapper. Zero values select the defaults; a negative GracePeriod
// disables the wait.
type Options struct {
	GracePeriod   time.Duration
	LookupTimeout time.Duration
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	// Sleep waits d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Bootstrapper runs the session state machine once.
type Bootstrapper struct {
	lookup        UserLookup
	store         credstore.Store
	location      Location
	grace         time.Duration
	lookupTimeout time.Duration
	logger        *slog.Logger
	metrics       *observability.Metrics
	sleep         func(ctx context.Context, d time.Duration) error

	once    sync.Once
	outcome Outcome

	mu    sync.RWMutex
	state State
}

// NewBootstrapper constructs a Bootstrapper. location may be nil when there is no entry URL.
func NewBootstrapper(lookup UserLookup, store credstore.Store, location Location, opts Options) *Bootstrapper {
	b := &Bootstrapper{
		lookup:        lookup,
		store:         store,
		location:      location,
		grace:         opts.GracePeriod,
		lookupTimeout: opts.LookupTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		sleep:         opts.Sleep,
	}
	if b.grace == 0 {
		b.grace = DefaultGracePeriod
	}
	if b.lookupTimeout <= 0 {
		b.lookupTimeout = DefaultLookupTimeout
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.sleep == nil {
		b.sleep = sleepContext
	}
	return b
}

// State returns the current state.
func (b *Bootstrapper) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Bootstrapper) enter(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()
	b.logger.Debug("session bootstrap", slog.String("from", prev.String()), slog.String("to", s.String()))
}

// Run resolves the session. Only the first call does any work; later calls return the
// same Outcome.
func (b *Bootstrapper) Run(ctx context.Context) Outcome {
	b.once.Do(func() {
		b.outcome = b.run(ctx)
		switch b.outcome.Kind {
		case OutcomeAuthenticated:
			b.enter(StateAuthenticated)
		case OutcomeFailed:
			b.enter(StateFailed)
		default:
			b.enter(StateUnauthenticated)
		}
	})
	return b.outcome
}

func (b *Bootstrapper) run(ctx context.Context) Outcome {
	entry := Redirect{Kind: RedirectNone}
	if b.location != nil {
		entry = ParseRedirect(b.location.URL())
	}

	switch entry.Kind {
	case RedirectToken:
		b.enter(StateResolvingOAuthRedirect)
		out := b.resolveToken(ctx, entry.Token)
		b.metrics.ObserveBootstrap("oauth_token", out.Kind.String())
		return out
	case RedirectCode:
		b.enter(StateResolvingOAuthRedirect)
		out := b.resolveCode(ctx)
		b.metrics.ObserveBootstrap("oauth_code", out.Kind.String())
		return out
	default:
		b.enter(StateResolvingStoredToken)
		out := b.resolveStored(ctx)
		path := "stored_token"
		if out.Cached {
			path = "stored_token_cached"
		}
		b.metrics.ObserveBootstrap(path, out.Kind.String())
		return out
	}
}

// resolveToken handles a token delivered in the URL. The token stays provisional, in
// memory only, until the backend confirms who it belongs to.
func (b *Bootstrapper) resolveToken(ctx context.Context, token string) Outcome {
	resp, err := b.lookup.CurrentUser(ctx, token)
	if err != nil {
		b.logger.Warn("oauth token lookup failed", slog.Any("error", err))
		return Unauthenticated()
	}
	if err := resp.Err(); err != nil {
		b.logger.Warn("oauth token rejected", slog.Any("error", err))
		return Unauthenticated()
	}
	user, err := DecodeProfile(resp.Body)
	if err != nil {
		b.logger.Warn("oauth token lookup returned unusable profile", slog.Any("error", err))
		return Unauthenticated()
	}
	sess := Session{Token: token, User: user}
	b.persist(ctx, sess)
	stripQuery(b.location)
	return Authenticated(sess)
}

// resolveCode waits for the backend to finish an authorization-code exchange and then
// asks for the user by session cookie. The query is stripped whatever happens.
func (b *Bootstrapper) resolveCode(ctx context.Context) Outcome {
	defer stripQuery(b.location)

	if b.grace > 0 {
		if err := b.sleep(ctx, b.grace); err != nil {
			return Failed(fmt.Errorf("%w: %v", ErrOAuthIncomplete, err))
		}
	}
	lookupCtx, cancel := context.WithTimeout(ctx, b.lookupTimeout)
	defer cancel()

	resp, err := b.lookup.OAuthUser(lookupCtx)
	if err != nil {
		b.logger.Warn("oauth user lookup failed", slog.Any("error", err))
		return Failed(fmt.Errorf("%w: %v", ErrOAuthIncomplete, err))
	}
	if err := resp.Err(); err != nil {
		b.logger.Warn("oauth user lookup rejected", slog.Any("error", err))
		return Failed(fmt.Errorf("%w: %v", ErrOAuthIncomplete, err))
	}
	sess, err := DecodeAuthPayload(resp.Body)
	if err != nil {
		b.logger.Warn("oauth user lookup returned unusable payload", slog.Any("error", err))
		return Failed(fmt.Errorf("%w: %v", ErrOAuthIncomplete, err))
	}
	b.persist(ctx, sess)
	return Authenticated(sess)
}

// resolveStored checks the stored token with the backend.
func (b *Bootstrapper) resolveStored(ctx context.Context) Outcome {
	creds, err := b.store.Load(ctx)
	if err != nil {
		b.logger.Warn("credential store unavailable, continuing signed out", slog.Any("error", err))
		return Unauthenticated()
	}
	if creds.Token == "" {
		if len(creds.Profile) > 0 {
			b.logger.Info("discarding cached profile without token")
			b.clear(ctx)
		}
		return Unauthenticated()
	}
	if info := InspectToken(creds.Token); info.Expired(time.Now()) {
		b.logger.Debug("stored token carries a past expiry", slog.Time("expires_at", info.ExpiresAt))
	}

	resp, err := b.lookup.CurrentUser(ctx, creds.Token)
	if err == nil {
		if classErr := resp.Err(); classErr != nil {
			if httpx.IsAuthFailure(classErr) {
				b.logger.Info("stored token rejected, signing out", slog.Int("status", resp.Status))
				b.clear(ctx)
				return Unauthenticated()
			}
			err = classErr
		} else {
			user, decodeErr := DecodeProfile(resp.Body)
			if decodeErr == nil {
				sess := Session{Token: creds.Token, User: user}
				b.persist(ctx, sess)
				return Authenticated(sess)
			}
			err = decodeErr
		}
	}

	cached, cacheErr := DecodeProfile(creds.Profile)
	if cacheErr != nil {
		b.logger.Warn("backend unreachable and cached profile unusable, signing out",
			slog.Any("error", err), slog.Any("cache_error", cacheErr))
		b.clear(ctx)
		return Unauthenticated()
	}
	b.logger.Warn("backend unreachable, using cached profile", slog.Any("error", err))
	out := Authenticated(Session{Token: creds.Token, User: cached})
	out.Cached = true
	return out
}

func (b *Bootstrapper) persist(ctx context.Context, sess Session) {
	creds, err := sess.Credentials()
	if err == nil {
		err = b.store.Save(ctx, creds)
	}
	if err != nil {
		b.logger.Warn("persist session", slog.Any("error", err))
	}
}

func (b *Bootstrapper) clear(ctx context.Context) {
	if err := b.store.Clear(ctx); err != nil {
		b.logger.Warn("clear credential store", slog.Any("error", err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ UserLookup = (*api.Client)(nil)
