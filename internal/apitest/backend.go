// Package apitest provides an in-process stand-in for the tripledger backend.
//
// It serves the auth and trip endpoints the client consumes, issues HS256 tokens, and lets
// tests force status codes or sever connections per path.
package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripledger/tripledger/internal/platform/httpx"
)

// Profile is the user shape the backend sends.
type Profile struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	Provider          string `json:"provider"`
}

type authPayload struct {
	Profile
	Token string `json:"token"`
}

type account struct {
	profile      Profile
	passwordHash []byte
}

// Request is a call observed by the backend.
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type fault struct {
	status int
	sever  bool
	delay  time.Duration
}

// Backend is a fake tripledger API server.
type Backend struct {
	Server *httptest.Server

	secret []byte

	mu        sync.Mutex
	accounts  map[string]*account
	nextUser  int64
	revoked   map[string]bool
	faults    map[string]fault
	requests  []Request
	oauthUser *Profile
	resets    map[string]string

	trips        map[int64]*Trip
	participants map[int64][]Participant
	purchases    map[int64][]Purchase
	nextID       int64
}

// NewBackend starts a Backend. It is closed when the test ends.
func NewBackend(t interface {
	Helper()
	Cleanup(func())
}) *Backend {
	t.Helper()
	b := &Backend{
		secret:       []byte("apitest-secret"),
		accounts:     make(map[string]*account),
		revoked:      make(map[string]bool),
		faults:       make(map[string]fault),
		resets:       make(map[string]string),
		trips:        make(map[int64]*Trip),
		participants: make(map[int64][]Participant),
		purchases:    make(map[int64][]Purchase),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the server root.
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Use(b.inject)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", b.handleLogin)
		r.Post("/register", b.handleRegister)
		r.Get("/me", b.handleMe)
		r.Post("/logout", b.handleLogout)
		r.Post("/forgot-password", b.handleForgot)
		r.Post("/verify-reset-code", b.handleVerifyReset)
		r.Post("/reset-password", b.handleReset)
	})
	r.Get("/api/oauth2/user", b.handleOAuthUser)
	r.Route("/api/trips", b.mountTrips)
	return r
}

// SeedUser creates a LOCAL account and returns its profile.
func (b *Backend) SeedUser(name, email, password string) Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createLocked(name, email, password, "LOCAL")
}

func (b *Backend) createLocked(name, email, password, provider string) Profile {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.nextUser++
	p := Profile{ID: b.nextUser, Email: email, Name: name, Provider: provider}
	b.accounts[strings.ToLower(email)] = &account{profile: p, passwordHash: hash}
	return p
}

// IssueToken signs a token for the user with id.
func (b *Backend) IssueToken(userID int64) string {
	return b.issueToken(userID, time.Hour)
}

// IssueExpiredToken signs a token that expired an hour ago.
func (b *Backend) IssueExpiredToken(userID int64) string {
	return b.issueToken(userID, -time.Hour)
}

func (b *Backend) issueToken(userID int64, ttl time.Duration) string {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		Issuer:    "apitest",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// RenameUser changes the display name the backend reports for a user.
func (b *Backend) RenameUser(userID int64, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if acc.profile.ID == userID {
			acc.profile.Name = name
		}
	}
}

// CompleteOAuth makes the cookie lookup return a GOOGLE account for email.
func (b *Backend) CompleteOAuth(name, email string) Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[strings.ToLower(email)]
	var p Profile
	if ok {
		p = acc.profile
	} else {
		p = b.createLocked(name, email, "oauth-only-account", "GOOGLE")
	}
	b.oauthUser = &p
	return p
}

// Fail forces every request to path to answer with status.
func (b *Backend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[path] = fault{status: status}
}

// Sever makes the backend drop the connection for path without answering.
func (b *Backend) Sever(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[path] = fault{sever: true}
}

// Delay makes requests to path wait d before being handled.
func (b *Backend) Delay(path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[path] = fault{delay: d}
}

// Heal removes any fault for path.
func (b *Backend) Heal(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.faults, path)
}

// Requests returns the calls observed so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the calls observed for path.
func (b *Backend) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// ResetCode returns the pending password-reset code for email.
func (b *Backend) ResetCode(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets[strings.ToLower(email)]
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		f, ok := b.faults[r.URL.Path]
		b.mu.Unlock()
		if ok {
			if f.delay > 0 {
				select {
				case <-time.After(f.delay):
				case <-r.Context().Done():
					return
				}
			}
			if f.sever {
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						_ = conn.Close()
						return
					}
				}
				panic(http.ErrAbortHandler)
			}
			if f.status != 0 {
				httpx.Problem(w, f.status, http.StatusText(f.status), "injected failure")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

var errBadToken = errors.New("apitest: bad token")

// authenticate resolves the bearer token to an account.
func (b *Backend) authenticate(r *http.Request) (*account, string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, "", errBadToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return b.secret, nil
	})
	if err != nil {
		return nil, "", errBadToken
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[raw] {
		return nil, "", errBadToken
	}
	for _, acc := range b.accounts {
		if fmt.Sprintf("%d", acc.profile.ID) == claims.Subject {
			return acc, raw, nil
		}
	}
	return nil, "", errBadToken
}

func unauthorized(w http.ResponseWriter) {
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
}
