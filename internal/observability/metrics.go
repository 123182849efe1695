package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type operationKey struct{}

// WithOperation tags outgoing requests made with ctx so the transport can label them.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// Metrics collects Prometheus metrics for the API client, the session bootstrapper and
// the OAuth callback listener.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	bootstraps      *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_api_requests_total",
		Help: "Backend API calls by operation and status code (code=error on transport failure).",
	}, []string{"operation", "code"})
	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripledger_api_request_duration_seconds",
		Help:    "Backend API call latency by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	bootstraps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_session_bootstraps_total",
		Help: "Session bootstrap outcomes.",
	}, []string{"path", "outcome"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_callback_requests_total",
		Help: "Requests served by the OAuth callback listener by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripledger_callback_request_duration_seconds",
		Help:    "Callback listener request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registry.MustRegister(apiRequests, apiDuration, bootstraps, requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		apiRequests:     apiRequests,
		apiDuration:     apiDuration,
		bootstraps:      bootstraps,
		requestsTotal:   requests,
		requestDuration: duration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveBootstrap records the path taken by a session bootstrap and its outcome.
func (m *Metrics) ObserveBootstrap(path, outcome string) {
	if m == nil {
		return
	}
	m.bootstraps.WithLabelValues(path, outcome).Inc()
}

// InstrumentTransport wraps next so each round trip is counted and timed.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if m == nil {
		return next
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		op := operationFrom(req.Context())
		start := time.Now()
		resp, err := next.RoundTrip(req)
		m.apiDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		m.apiRequests.WithLabelValues(op, code).Inc()
		return resp, err
	})
}

// Middleware records metrics for every request served by the callback listener.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
