// Package gateway is the edge delivery gateway for ViralClip media.
//
// It authorizes requests with self-contained signed capability tokens and
// streams the backing object from the store. Every request is handled
// independently: no sessions, no shared mutable state, no cross-request
// coordination. The same binary runs identically on any number of edge
// instances that share only the signing secret and the object store.
//
// Routes:
//
//	GET  /v/{clipID}?sig=…  — video bytes (scopes play, dl); 200/206 on success
//	GET  /t/{clipID}?sig=…  — thumbnail bytes (scopes thumb, play)
//	HEAD on both media routes — headers only, same authorization path
//	GET  /health            — liveness (no auth)
//	GET  /metrics           — Prometheus scrape endpoint (no auth)
//	OPTIONS *               — CORS preflight (204 or 403)
//	anything else           — 404
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vmatresu/viralclipai-sub000/internal/cors"
	"github.com/vmatresu/viralclipai-sub000/internal/metrics"
	"github.com/vmatresu/viralclipai-sub000/internal/store"
)

// Gateway holds the injected dependencies of the delivery service. It keeps
// no per-request state and is safe for unbounded concurrent use.
type Gateway struct {
	secret []byte
	store  store.Store
	cors   *cors.Policy
	log    *logrus.Entry

	// now is injectable for expiry tests; time.Now in production.
	now func() time.Time
}

// New builds a Gateway from its dependencies. st is the backing object
// store; policy the CORS origin allow-list.
func New(secret []byte, st store.Store, policy *cors.Policy, log *logrus.Entry) *Gateway {
	return &Gateway{
		secret: secret,
		store:  st,
		cors:   policy,
		log:    log,
		now:    time.Now,
	}
}

// Router assembles the HTTP routing table.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(g.preflight)
	r.Use(g.requestLog)

	r.Method(http.MethodGet, "/health", metrics.Middleware("/health",
		http.HandlerFunc(handleHealth)))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	video := metrics.Middleware("/v/{clipID}", http.HandlerFunc(g.handleVideo))
	thumb := metrics.Middleware("/t/{clipID}", http.HandlerFunc(g.handleThumbnail))
	r.Method(http.MethodGet, "/v/{clipID}", video)
	r.Method(http.MethodHead, "/v/{clipID}", video)
	r.Method(http.MethodGet, "/t/{clipID}", thumb)
	r.Method(http.MethodHead, "/t/{clipID}", thumb)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})

	return r
}

// preflight intercepts OPTIONS on any path — CORS preflight is answered
// before routing so unknown paths preflight the same as real ones.
func (g *Gateway) preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			g.cors.Preflight(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestID tags every response with a fresh X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

// requestLog emits one structured line per request.
func (g *Gateway) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		g.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rw.status,
			"duration":   time.Since(start).String(),
			"request_id": w.Header().Get("X-Request-ID"),
		}).Info("request")
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// writeError writes the JSON error envelope used by every non-2xx response.
// Internal failures must stay generic — no store details leak to clients.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
