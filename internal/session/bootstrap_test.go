package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripledger/tripledger/internal/api"
	"github.com/tripledger/tripledger/internal/apitest"
	"github.com/tripledger/tripledger/internal/credstore"
	"github.com/tripledger/tripledger/internal/observability"
	"github.com/tripledger/tripledger/internal/session"
	_ "github.com/tripledger/tripledger/testing"
)

type fixture struct {
	backend *apitest.Backend
	client  *api.Client
	store   *credstore.MemoryStore
	user    apitest.Profile
	token   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := apitest.NewBackend(t)
	client, err := api.New(api.Options{BaseURL: backend.URL()})
	require.NoError(t, err)
	user := backend.SeedUser("Ana Lima", "ana@example.com", "password123")
	return &fixture{
		backend: backend,
		client:  client,
		store:   credstore.NewMemoryStore(),
		user:    user,
		token:   backend.IssueToken(user.ID),
	}
}

func (f *fixture) bootstrap(t *testing.T, loc session.Location) (*session.Bootstrapper, session.Outcome) {
	t.Helper()
	b := session.NewBootstrapper(f.client, f.store, loc, session.Options{
		GracePeriod:   -1,
		LookupTimeout: time.Second,
	})
	return b, b.Run(context.Background())
}

func (f *fixture) seedStore(t *testing.T, token, profile string) {
	t.Helper()
	creds := credstore.Credentials{Token: token}
	if profile != "" {
		creds.Profile = []byte(profile)
	}
	require.NoError(t, f.store.Save(context.Background(), creds))
}

func location(t *testing.T, raw string) *session.StaticLocation {
	t.Helper()
	loc, err := session.NewLocation(raw)
	require.NoError(t, err)
	return loc
}

const staleProfile = `{"id":1,"email":"ana@example.com","name":"Old Name","provider":"LOCAL"}`

func TestProfileWithoutTokenIsUnauthenticated(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, "", staleProfile)

	b, out := f.bootstrap(t, location(t, "tripledger://app/home"))

	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
	assert.Nil(t, out.Session)
	assert.Equal(t, session.StateUnauthenticated, b.State())
	assert.Empty(t, f.backend.Requests(), "no lookup without a token")

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestEmptyStoreIsUnauthenticated(t *testing.T) {
	f := newFixture(t)
	_, out := f.bootstrap(t, nil)
	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
}

func TestStoredTokenServerProfileOverwritesCache(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)

	b, out := f.bootstrap(t, nil)

	require.True(t, out.IsAuthenticated())
	assert.False(t, out.Cached)
	assert.Equal(t, "Ana Lima", out.Session.User.DisplayName)
	assert.Equal(t, f.token, out.Session.Token)
	assert.Equal(t, session.StateAuthenticated, b.State())

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.token, creds.Token)
	cached, err := session.DecodeProfile(creds.Profile)
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", cached.DisplayName)
}

func TestStoredToken401ClearsStore(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	f.backend.Fail(api.PathMe, http.StatusUnauthorized)

	_, out := f.bootstrap(t, nil)

	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestStoredToken403ClearsStore(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	f.backend.Fail(api.PathMe, http.StatusForbidden)

	_, out := f.bootstrap(t, nil)

	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestNetworkFailureFallsBackToCompleteCache(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	f.backend.Sever(api.PathMe)

	_, out := f.bootstrap(t, nil)

	require.True(t, out.IsAuthenticated())
	assert.True(t, out.Cached)
	assert.Equal(t, "Old Name", out.Session.User.DisplayName)
	assert.Equal(t, f.token, out.Session.Token)

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.token, creds.Token, "cache kept for the next run")
}

func TestServerErrorFallsBackToCompleteCache(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	f.backend.Fail(api.PathMe, http.StatusBadGateway)

	_, out := f.bootstrap(t, nil)

	require.True(t, out.IsAuthenticated())
	assert.True(t, out.Cached)
}

func TestNetworkFailureWithIncompleteCacheSignsOut(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, `{"id":1,"name":"Ana","provider":"LOCAL"}`)
	f.backend.Sever(api.PathMe)

	_, out := f.bootstrap(t, nil)

	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestNetworkFailureWithoutCacheSignsOut(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, "")
	f.backend.Sever(api.PathMe)

	_, out := f.bootstrap(t, nil)
	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
}

func TestTokenInURLIsPersistedAndStripped(t *testing.T) {
	f := newFixture(t)
	loc := location(t, "http://localhost:3000/dashboard?token="+f.token)

	_, out := f.bootstrap(t, loc)

	require.True(t, out.IsAuthenticated())
	assert.Equal(t, f.token, out.Session.Token)
	assert.NotContains(t, loc.String(), "token")
	assert.Equal(t, "http://localhost:3000/dashboard", loc.String())

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.token, creds.Token)
}

func TestOpaqueTokenInURL(t *testing.T) {
	f := newFixture(t)
	stub := &stubLookup{meStatus: http.StatusOK, meBody: `{"id":3,"email":"x@example.com","name":"X","provider":"google"}`}
	loc := location(t, "http://localhost:3000/?token=abc123")
	b := session.NewBootstrapper(stub, f.store, loc, session.Options{GracePeriod: -1})
	out := b.Run(context.Background())

	require.True(t, out.IsAuthenticated())
	assert.Equal(t, session.ProviderGoogle, out.Session.User.Provider)
	assert.Equal(t, "abc123", stub.lastToken)
	assert.NotContains(t, loc.String(), "token")

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", creds.Token)
}

func TestRejectedTokenInURLPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	loc := location(t, "http://localhost:3000/?token=forged")

	_, out := f.bootstrap(t, loc)

	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.token, creds.Token, "existing credentials untouched")
}

func TestCodeRedirectCompletesWithCookieLookup(t *testing.T) {
	f := newFixture(t)
	f.backend.CompleteOAuth("Gil", "gil@example.com")
	loc := location(t, "http://localhost:3000/callback?code=4/abc&state=xyz")

	var slept time.Duration
	b := session.NewBootstrapper(f.client, f.store, loc, session.Options{
		GracePeriod: 2 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = d
			return nil
		},
	})
	out := b.Run(context.Background())

	require.True(t, out.IsAuthenticated())
	assert.Equal(t, 2*time.Second, slept)
	assert.Equal(t, "gil@example.com", out.Session.User.Email)
	assert.Equal(t, session.ProviderGoogle, out.Session.User.Provider)
	assert.Equal(t, "http://localhost:3000/callback", loc.String())

	calls := f.backend.RequestsTo(api.PathOAuthUser)
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Authorization, "cookie lookup carries no bearer")

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out.Session.Token, creds.Token)
}

func TestCodeRedirectFailureIsExplicitError(t *testing.T) {
	f := newFixture(t)
	loc := location(t, "http://localhost:3000/callback?code=4/abc&state=xyz")

	b, out := f.bootstrap(t, loc)

	assert.Equal(t, session.OutcomeFailed, out.Kind)
	assert.Nil(t, out.Session, "no placeholder identity is minted")
	assert.ErrorIs(t, out.Err, session.ErrOAuthIncomplete)
	assert.Equal(t, session.StateFailed, b.State())
	assert.Equal(t, "http://localhost:3000/callback", loc.String())

	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

func TestCodeRedirectLookupTimeout(t *testing.T) {
	f := newFixture(t)
	f.backend.CompleteOAuth("Gil", "gil@example.com")
	f.backend.Delay(api.PathOAuthUser, 2*time.Second)
	loc := location(t, "http://localhost:3000/callback?code=c&state=s")

	b := session.NewBootstrapper(f.client, f.store, loc, session.Options{
		GracePeriod:   -1,
		LookupTimeout: 50 * time.Millisecond,
	})
	out := b.Run(context.Background())

	assert.Equal(t, session.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, session.ErrOAuthIncomplete)
	assert.False(t, strings.Contains(loc.String(), "code="))
}

func TestCodeRedirectCancelledDuringGrace(t *testing.T) {
	f := newFixture(t)
	loc := location(t, "http://localhost:3000/callback?code=c&state=s")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := session.NewBootstrapper(f.client, f.store, loc, session.Options{GracePeriod: time.Minute})
	out := b.Run(ctx)

	assert.Equal(t, session.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, session.ErrOAuthIncomplete)
	assert.Empty(t, f.backend.RequestsTo(api.PathOAuthUser))
}

func TestStoreUnavailableMeansNoSession(t *testing.T) {
	f := newFixture(t)
	b := session.NewBootstrapper(f.client, failingStore{}, nil, session.Options{})
	out := b.Run(context.Background())
	assert.Equal(t, session.OutcomeUnauthenticated, out.Kind)
}

func TestRunResolvesOnce(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	b := session.NewBootstrapper(f.client, f.store, nil, session.Options{})

	first := b.Run(context.Background())
	second := b.Run(context.Background())

	require.True(t, first.IsAuthenticated())
	assert.Equal(t, first, second)
	assert.Len(t, f.backend.RequestsTo(api.PathMe), 1)
}

func TestBootstrapMetrics(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, f.token, staleProfile)
	f.backend.Sever(api.PathMe)
	metrics := observability.NewMetrics()
	b := session.NewBootstrapper(f.client, f.store, nil, session.Options{Metrics: metrics})
	b.Run(context.Background())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(),
		`tripledger_session_bootstraps_total{outcome="authenticated",path="stored_token_cached"} 1`)
}

type failingStore struct{}

func (failingStore) Save(context.Context, credstore.Credentials) error { return errors.New("disabled") }
func (failingStore) Load(context.Context) (credstore.Credentials, error) {
	return credstore.Credentials{}, errors.New("storage disabled")
}
func (failingStore) Clear(context.Context) error { return errors.New("disabled") }

type stubLookup struct {
	meStatus  int
	meBody    string
	lastToken string
}

func (s *stubLookup) CurrentUser(ctx context.Context, token string) (*api.Response, error) {
	s.lastToken = token
	return &api.Response{Status: s.meStatus, Body: []byte(s.meBody)}, nil
}

func (s *stubLookup) OAuthUser(ctx context.Context) (*api.Response, error) {
	return &api.Response{Status: http.StatusUnauthorized}, nil
}
