// Package api implements the HTTP read/write contract from spec.md §4.4:
// job submission and the allowlist check, keyset-paginated listing, job
// detail, log tailing (with SSE streaming), and path-safe artifact
// download.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/escossio/sandbox-orchestrator/internal/store"
)

// Config bundles the dependencies NewRouter needs.
type Config struct {
	Store           store.Store
	JobsRoot        string
	Logger          *slog.Logger
	RateLimitPerMin int
}

type api struct {
	store    store.Store
	jobsRoot string
	log      *slog.Logger
}

// NewRouter builds the chi.Mux serving every endpoint spec.md §4.4 names,
// following the chi-plus-respondWithJSON shape
// _examples/KevTiv-alieze-erp/internal/modules/inventory/handler uses.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &api{store: cfg.Store, jobsRoot: cfg.JobsRoot, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(logger))
	r.Use(newHostRateLimiter(cfg.RateLimitPerMin).middleware)

	r.Get("/api/health", a.handleHealth)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", a.handleCreateJob)
		r.Get("/", a.handleListJobs)
		r.Get("/{job_id}", a.handleGetJob)
		r.Get("/{job_id}/logs", a.handleGetLogs)
		r.Get("/{job_id}/artifacts", a.handleListArtifacts)
		r.Get("/{job_id}/artifacts/*", a.handleGetArtifact)
	})

	return r
}

// NewServer wraps the router the way
// _examples/KevTiv-alieze-erp/internal/server/server.go configures its
// http.Server: conservative idle/read/write timeouts, no custom transport.
func NewServer(addr string, cfg Config) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(cfg),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// requestIDMiddleware mints this request's req_<32 hex> identifier and
// attaches it to the context so both the success envelope (writeEnvelope)
// and the error envelope (writeError) report the same value.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, withRequestID(r))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestIDFrom(r),
			)
		})
	}
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, db := "ok", "ok"
	if err := a.store.Ping(ctx); err != nil {
		status, db = "degraded", "fail"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"db":              db,
		"server_time_utc": serverTimeUTC(),
	})
}
