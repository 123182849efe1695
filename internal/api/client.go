// Package api is the HTTP client for the tripledger backend.
//
// Every method returns the raw transport response and only fails on transport errors;
// interpreting status codes is left to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripledger/tripledger/internal/observability"
	"github.com/tripledger/tripledger/internal/platform/httpx"
)

// TokenSource supplies the bearer token for authenticated calls. An empty token means none.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) string {
	return f(ctx)
}

// Response is a completed HTTP exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Err classifies the response with httpx.Classify.
func (r *Response) Err() error {
	if r == nil {
		return httpx.ErrNetwork
	}
	return httpx.Classify(r.Status, r.Body)
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return errors.New("api: empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Tokens    TokenSource
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Client issues requests against the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(ctx context.Context, token string)
}

// New constructs a Client. The client owns a cookie jar so the OAuth session cookie set by
// the backend is replayed on the cookie-authenticated lookup.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Metrics.InstrumentTransport(opts.Transport),
			Jar:       jar,
		},
		logger: logger,
		tokens: opts.Tokens,
	}, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the source of bearer tokens for authenticated calls.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers fn to run when an authenticated call is answered with 401.
// fn receives the token that was rejected.
func (c *Client) OnUnauthorized(fn func(ctx context.Context, token string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) currentToken(ctx context.Context) string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts.Token(ctx)
}

// authed performs a call with the bearer token from the TokenSource and fires the
// unauthorized hook on 401.
func (c *Client) authed(ctx context.Context, op, method, path string, body any) (*Response, error) {
	token := c.currentToken(ctx)
	resp, err := c.do(ctx, op, method, path, token, body)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized && token != "" {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			c.logger.Info("api: bearer token rejected", slog.String("operation", op))
			hook(ctx, token)
		}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(observability.WithOperation(ctx, op), method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	buildHeaders(req.Header, token, body != nil)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api: transport failure", slog.String("operation", op), slog.Any("error", err))
		return nil, httpx.Transport(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httpx.Transport(err)
	}
	c.logger.Debug("api: call",
		slog.String("operation", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

func buildHeaders(h http.Header, token string, hasBody bool) {
	h.Set("Accept", "application/json")
	if hasBody {
		h.Set("Content-Type", "application/json")
	}
	h.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}
