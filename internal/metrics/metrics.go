// Package metrics provides Prometheus instrumentation for the delivery
// gateway.
//
// The gateway registers its metrics then mounts metrics.Handler() at
// GET /metrics (Prometheus scrape endpoint).
//
// Standard metrics exposed automatically by prometheus/client_golang:
//   - go_goroutines, go_gc_duration_seconds, etc. (Go runtime)
//   - process_cpu_seconds_total, process_open_fds, etc. (process)
//
// Gateway-specific metrics registered here:
//
//	delivery_http_requests_total          — counter: requests by route/method/status
//	delivery_http_request_duration_secs   — histogram: latency by route/method
//	delivery_auth_failures_total          — counter: rejected requests by reason
//	delivery_bytes_served_total           — counter: media bytes streamed by kind
//	delivery_store_errors_total           — counter: object store failures by type
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── Counters ──────────────────────────────────────────────────────────────────

// HTTPRequests counts HTTP requests by route, method, and status code.
// route is a template ("/v/{clipID}"), never the raw URL, to bound cardinality.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"route", "method", "status"})

// AuthFailures counts rejected media requests by reason
// (missing, invalid, cid_mismatch, scope_mismatch).
var AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_auth_failures_total",
	Help: "Rejected delivery requests by reason.",
}, []string{"reason"})

// BytesServed counts media bytes streamed to clients by asset kind
// (video, thumbnail).
var BytesServed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_bytes_served_total",
	Help: "Media bytes streamed to clients.",
}, []string{"kind"})

// StoreErrors counts object store failures by type (not_found, transport).
var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_store_errors_total",
	Help: "Object store fetch failures by type.",
}, []string{"type"})

// ── Histograms ────────────────────────────────────────────────────────────────

// HTTPDuration tracks HTTP request latency by route and method.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "delivery_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
}, []string{"route", "method"})

// ── Handler ───────────────────────────────────────────────────────────────────

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ── Middleware ────────────────────────────────────────────────────────────────

// Middleware wraps an HTTP handler to record request counts and latency.
// route must be a templated path (e.g. "/v/{clipID}") not the raw URL.
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(route, r.Method, status).Inc()
		HTTPDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// ── Init (registry-scoped) ────────────────────────────────────────────────────

// Init registers all gateway metrics with the given prometheus.Registerer.
// Provided for testing — pass prometheus.NewRegistry() for an isolated
// registry. In production everything is registered via promauto to
// prometheus.DefaultRegisterer at package init time.
func Init(reg prometheus.Registerer) {
	httpReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"route", "method", "status"})

	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_auth_failures_total",
		Help: "Rejected delivery requests by reason.",
	}, []string{"reason"})

	bytesServed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_bytes_served_total",
		Help: "Media bytes streamed to clients.",
	}, []string{"kind"})

	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_store_errors_total",
		Help: "Object store fetch failures by type.",
	}, []string{"type"})

	reg.MustRegister(
		httpReqs,
		httpDur,
		authFailures,
		bytesServed,
		storeErrors,
	)
}
