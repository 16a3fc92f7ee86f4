// Package http exposes the month partitions as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"compras/internal/estimation"
	"compras/internal/log"
	"compras/internal/metrics"
	"compras/internal/partition"
)

// Estimator produces estimation sets for a month.
type Estimator interface {
	Estimate(ctx context.Context, month string) (estimation.Set, error)
}

// Deps are the collaborators of the server. Estimator, Metrics and Ready
// are optional.
type Deps struct {
	Manager   *partition.Manager
	Estimator Estimator
	Logger    *log.Logger
	Metrics   *metrics.Collector
	// Ready reports whether the backing services are reachable.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	manager   *partition.Manager
	estimator Estimator
	logger    *log.Logger
	metrics   *metrics.Collector
	ready     func(ctx context.Context) error

	rateLimiter  *rateLimiter
	security     *securityMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		manager:     deps.Manager,
		estimator:   deps.Estimator,
		logger:      logger.WithComponent(log.ComponentHTTP),
		metrics:     deps.Metrics,
		ready:       deps.Ready,
		rateLimiter: newRateLimiter(),
		security:    &securityMetrics{},
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware)
	r.Use(log.AccessLog)
	r.Use(s.withMetrics)
	r.Use(s.withSecurityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/months", func(r chi.Router) {
		r.Use(s.withRateLimit)
		r.Get("/", s.handleListMonths)
		r.Route("/{month}", func(r chi.Router) {
			r.Get("/", s.handleGetMonth)
			r.Put("/activate", s.handleActivate)
			r.Post("/retry", s.handleRetry)

			r.Post("/items", s.handleAddItem)
			r.Patch("/items/{id}", s.handleUpdateItem)
			r.Delete("/items/{id}", s.handleDeleteItem)

			r.Post("/estimations", s.handleEstimate)
			r.Post("/estimations/import", s.handleImportEstimations)
		})
	})

	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMetrics records one observation per request, labelled by route
// pattern so that month names and ids do not explode cardinality.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTP(r.Method, route, status, time.Since(start))
	})
}
