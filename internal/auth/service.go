// Package auth owns the signed-in session for the lifetime of the process.
//
// A Service is the single source of truth for who is signed in: it runs the session
// bootstrap once, performs login, registration and logout, and serves the bearer token to
// the API client for every authenticated call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tripledger/tripledger/internal/api"
	"github.com/tripledger/tripledger/internal/credstore"
	"github.com/tripledger/tripledger/internal/observability"
	"github.com/tripledger/tripledger/internal/platform/httpx"
	"github.com/tripledger/tripledger/internal/session"
)

// Options configures a Service.
type Options struct {
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Bootstrap session.Options
	// OnSignOut runs after a user stops being the signed-in user: on logout, on an expired
	// token, or when another account signs in.
	OnSignOut func(ctx context.Context, userID int64)
}

// Service wraps the authentication flows against the backend.
type Service struct {
	client   *api.Client
	store    credstore.Store
	logger   *slog.Logger
	bootOpts session.Options
	onOut    func(ctx context.Context, userID int64)

	mu      sync.RWMutex
	current *session.Session
	loading bool

	bootOnce sync.Once
	booted   session.Outcome

	refresh singleflight.Group
}

// NewService constructs a Service and registers it with client as the token source and the
// handler for rejected tokens.
func NewService(client *api.Client, store credstore.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bootOpts := opts.Bootstrap
	if bootOpts.Logger == nil {
		bootOpts.Logger = logger
	}
	if bootOpts.Metrics == nil {
		bootOpts.Metrics = opts.Metrics
	}
	s := &Service{
		client:   client,
		store:    store,
		logger:   logger,
		bootOpts: bootOpts,
		onOut:    opts.OnSignOut,
		loading:  true,
	}
	client.SetTokenSource(s)
	client.OnUnauthorized(s.handleUnauthorized)
	return s
}

// Bootstrap resolves the session at start-up. loc is the entry URL and may be nil. Only the
// first call does any work.
func (s *Service) Bootstrap(ctx context.Context, loc session.Location) session.Outcome {
	s.bootOnce.Do(func() {
		out := session.NewBootstrapper(s.client, s.store, loc, s.bootOpts).Run(ctx)
		s.mu.Lock()
		if out.IsAuthenticated() && s.current == nil {
			sess := *out.Session
			s.current = &sess
		}
		s.loading = false
		s.mu.Unlock()
		s.booted = out
	})
	return s.booted
}

// Session returns the current session.
func (s *Service) Session() (session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return session.Session{}, false
	}
	return *s.current, true
}

// IsLoading reports whether the start-up bootstrap is still running.
func (s *Service) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Token implements api.TokenSource.
func (s *Service) Token(context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Login signs in with email and password. On failure any existing session is left as it was.
func (s *Service) Login(ctx context.Context, email, password string) error {
	req := api.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validateInput(req); err != nil {
		return err
	}
	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return err
	}
	return s.adopt(ctx, resp)
}

// Register creates an account and signs in with it.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	req := api.RegisterRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := validateInput(req); err != nil {
		return err
	}
	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return s.adopt(ctx, resp)
}

// adopt makes an auth response the current session and persists it.
func (s *Service) adopt(ctx context.Context, resp *api.Response) error {
	sess, err := session.DecodeAuthPayload(resp.Body)
	if err != nil {
		return err
	}
	s.signedOut(ctx, s.set(&sess), &sess)
	creds, err := sess.Credentials()
	if err == nil {
		err = s.store.Save(ctx, creds)
	}
	if err != nil {
		s.logger.Warn("persist session", slog.Any("error", err))
	}
	s.logger.Info("signed in", slog.Int64("user_id", sess.User.ID), slog.String("provider", string(sess.User.Provider)))
	return nil
}

// Logout ends the session. The backend is told best-effort; the store and the in-memory
// session are always cleared. The returned error only reports a store that could not be
// cleared.
func (s *Service) Logout(ctx context.Context) error {
	if token := s.Token(ctx); token != "" {
		resp, err := s.client.Logout(ctx, token)
		if err == nil {
			err = resp.Err()
		}
		if err != nil {
			s.logger.Debug("backend logout", slog.Any("error", err))
		}
	}
	s.signedOut(ctx, s.set(nil), nil)
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("clear credential store", slog.Any("error", err))
		return fmt.Errorf("auth: clear credentials: %w", err)
	}
	return nil
}

// Refresh re-reads the signed-in user from the backend. Concurrent calls share one request.
// A rejected token ends the session.
func (s *Service) Refresh(ctx context.Context) (session.Session, error) {
	token := s.Token(ctx)
	if token == "" {
		return session.Session{}, ErrNotSignedIn
	}
	v, err, _ := s.refresh.Do(token, func() (any, error) {
		resp, err := s.client.CurrentUser(ctx, token)
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			if httpx.IsAuthFailure(err) {
				s.expire(ctx, token)
				return nil, fmt.Errorf("%w: %w", ErrNotSignedIn, err)
			}
			return nil, err
		}
		user, err := session.DecodeProfile(resp.Body)
		if err != nil {
			return nil, err
		}
		sess := session.Session{Token: token, User: user}
		if _, ok := s.replace(token, &sess); !ok {
			return nil, ErrNotSignedIn
		}
		if creds, err := sess.Credentials(); err == nil {
			if err := s.store.Save(ctx, creds); err != nil {
				s.logger.Warn("persist refreshed profile", slog.Any("error", err))
			}
		}
		return sess, nil
	})
	if err != nil {
		return session.Session{}, err
	}
	return v.(session.Session), nil
}

// ForgotPassword asks the backend to mail a reset code.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	req := api.ForgotPasswordRequest{Email: strings.TrimSpace(email)}
	if err := validateInput(req); err != nil {
		return err
	}
	return classify(s.client.ForgotPassword(ctx, req))
}

// VerifyResetCode checks a mailed reset code.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) error {
	req := api.VerifyResetCodeRequest{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code)}
	if err := validateInput(req); err != nil {
		return err
	}
	return classify(s.client.VerifyResetCode(ctx, req))
}

// ResetPassword sets a new password with a verified code.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	req := api.ResetPasswordRequest{
		Email:       strings.TrimSpace(email),
		Code:        strings.TrimSpace(code),
		NewPassword: newPassword,
	}
	if err := validateInput(req); err != nil {
		return err
	}
	return classify(s.client.ResetPassword(ctx, req))
}

// handleUnauthorized runs when an authenticated call is answered with 401.
func (s *Service) handleUnauthorized(ctx context.Context, token string) {
	s.expire(ctx, token)
}

// expire ends the session if it still uses token.
func (s *Service) expire(ctx context.Context, token string) {
	if token == "" {
		return
	}
	prev, ok := s.replace(token, nil)
	if !ok {
		return
	}
	s.logger.Info("session expired, signing out")
	s.signedOut(ctx, prev, nil)
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("clear credential store", slog.Any("error", err))
	}
}

// set installs sess and returns the session it replaced. A login or logout settles the
// session, so loading ends here too.
func (s *Service) set(sess *session.Session) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = sess
	s.loading = false
	return prev
}

// replace swaps the session only while it still carries token.
func (s *Service) replace(token string, sess *session.Session) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Token != token {
		return nil, false
	}
	prev := s.current
	s.current = sess
	return prev, true
}

// signedOut notifies OnSignOut when prev's user is no longer the one signed in.
func (s *Service) signedOut(ctx context.Context, prev, next *session.Session) {
	if s.onOut == nil || prev == nil {
		return
	}
	if next != nil && next.User.ID == prev.User.ID {
		return
	}
	s.onOut(ctx, prev.User.ID)
}

func classify(resp *api.Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}

var _ api.TokenSource = (*Service)(nil)
