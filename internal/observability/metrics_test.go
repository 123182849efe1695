package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestInstrumentTransportLabelsOperation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	metrics := NewMetrics()
	client := &http.Client{Transport: metrics.InstrumentTransport(nil)}

	req, err := http.NewRequestWithContext(WithOperation(context.Background(), "auth.me"), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	body := scrape(t, metrics)
	require.Contains(t, body, `tripledger_api_requests_total{code="401",operation="auth.me"} 1`)
	require.Contains(t, body, `tripledger_api_request_duration_seconds_bucket{operation="auth.me"`)
}

func TestInstrumentTransportCountsTransportErrors(t *testing.T) {
	metrics := NewMetrics()
	failing := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	client := &http.Client{Transport: metrics.InstrumentTransport(failing)}

	req, err := http.NewRequest(http.MethodGet, "http://backend.invalid/api/trips", nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)

	require.Contains(t, scrape(t, metrics), `tripledger_api_requests_total{code="error",operation="unknown"} 1`)
}

func TestObserveBootstrap(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveBootstrap("stored_token", "authenticated")
	require.Contains(t, scrape(t, metrics), `tripledger_session_bootstraps_total{outcome="authenticated",path="stored_token"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/callback")

	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	if !strings.Contains(body, `tripledger_callback_requests_total{code="418",route="/callback"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveBootstrap("none", "unauthenticated")
	require.NotNil(t, metrics.InstrumentTransport(nil))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
