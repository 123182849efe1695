// Package callback runs the loopback HTTP listener that receives the OAuth redirect.
//
// The browser is sent to the backend's Google sign-in with redirect_uri pointing here. The
// backend sends it back with token=...&state=... or code=...&state=...; the listener captures that URL
// once and hands it to the session bootstrapper as its entry Location.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripledger/tripledger/internal/app"
	"github.com/tripledger/tripledger/internal/observability"
	"github.com/tripledger/tripledger/internal/platform/httpx"
	"github.com/tripledger/tripledger/internal/session"
)

// CallbackPath is where the backend redirects the browser.
const CallbackPath = "/callback"

// ErrClosed is returned by Wait when the listener shuts down before a redirect arrives.
var ErrClosed = errors.New("callback: listener closed")

// Options configures a Listener.
type Options struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// RateLimit caps requests per minute per client address. Zero means 30.
	RateLimit int
}

// Listener serves the OAuth callback on a loopback address.
type Listener struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	state    string
	listener net.Listener
	server   *http.Server

	once     sync.Once
	captured chan *url.URL
	done     chan struct{}
	closeMu  sync.Once
}

// Listen binds addr. Use port 0 to pick a free port.
func Listen(addr string, opts Options) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("callback: listen %s: %w", addr, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{
		logger:   logger,
		metrics:  opts.Metrics,
		state:    uuid.NewString(),
		listener: ln,
		captured: make(chan *url.URL, 1),
		done:     make(chan struct{}),
	}
	l.server = &http.Server{
		Handler:           l.Router(opts.RateLimit),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

// RedirectURI is the URL the backend must send the browser back to.
func (l *Listener) RedirectURI() string {
	return "http://" + l.Addr() + CallbackPath
}

// State is the value the backend must echo back with the token or authorization code.
func (l *Listener) State() string {
	return l.state
}

// Serve accepts connections until Close is called.
func (l *Listener) Serve() error {
	err := l.server.Serve(l.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Wait blocks until the redirect arrives and returns it as a session.Location.
func (l *Listener) Wait(ctx context.Context) (*session.StaticLocation, error) {
	select {
	case u := <-l.captured:
		return session.NewLocation(u.String())
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the server, waiting for in-flight requests until ctx is done.
func (l *Listener) Close(ctx context.Context) error {
	l.closeMu.Do(func() { close(l.done) })
	return l.server.Shutdown(ctx)
}

// Router builds the chi router with the listener's middleware stack.
func (l *Listener) Router(rateLimit int) http.Handler {
	r := chi.NewRouter()
	r.Use(app.MiddlewareStack(app.MiddlewareConfig{
		Logger:    l.logger,
		Metrics:   l.metrics,
		RateLimit: rateLimit,
		Timeout:   10 * time.Second,
	})...)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get(CallbackPath, l.handleCallback)
	r.Handle("/metrics", l.metrics.Handler())
	return r
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	entry := session.ParseRedirect(r.URL)
	switch entry.Kind {
	case session.RedirectNone:
		if msg := r.URL.Query().Get("error"); msg != "" {
			l.logger.Warn("oauth provider returned an error", slog.String("error", msg))
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "redirect carries no credentials")
		return
	}
	// Both kinds must echo the state minted for this listener.
	if entry.State != l.state {
		l.logger.Warn("oauth callback with unexpected state", slog.String("kind", entry.Kind.String()))
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "state mismatch")
		return
	}

	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host
	accepted := false
	l.once.Do(func() {
		l.captured <- &u
		accepted = true
	})
	if !accepted {
		httpx.Problem(w, http.StatusConflict, "Conflict", "sign-in already received")
		return
	}
	l.logger.Info("oauth redirect received", slog.String("kind", entry.Kind.String()))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Sign-in received. You can close this window and return to the terminal.\n"))
}
