// Package web provides the HTTP trigger for pipeline runs.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/medallion/internal/pipeline"
	weblog "github.com/JonMunkholm/medallion/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Trigger starts runs and reports the last one. *pipeline.Runner implements it.
type Trigger interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
	Latest() *pipeline.RunResult
}

// Options configures a Server. Zero values disable the matching feature.
type Options struct {
	// RunTimeout bounds a run started over HTTP.
	RunTimeout time.Duration
	// RequestTimeout is the chi Timeout middleware deadline.
	RequestTimeout time.Duration

	APIKeys        []string
	TrustedProxies []string

	// Metrics serves /metrics.
	Metrics http.Handler
	// Health is checked by /healthz, typically a database ping.
	Health func(ctx context.Context) error
	// Rejections serves the ledger read routes. Nil in dry-run mode.
	Rejections RejectionStore
}

// Server is the HTTP trigger server.
type Server struct {
	trigger Trigger
	opts    Options
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server around trigger.
func NewServer(trigger Trigger, opts Options) *Server {
	s := &Server{
		trigger: trigger,
		opts:    opts,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(weblog.TrustedRealIP(s.opts.TrustedProxies))
	s.router.Use(weblog.Logger)
	s.router.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/runs/latest", s.handleLatestRun)
		r.With(weblog.APIKeyAuth(s.opts.APIKeys)).Post("/runs", s.handleRun)
		if s.opts.Rejections != nil {
			r.Get("/rejections", s.handleRejections)
			r.Get("/rejections/export", s.handleExportRejections)
		}
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string, readTimeout, writeTimeout, idleTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout, // Runs are synchronous; 0 disables
		IdleTimeout:  idleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses. The server only
// speaks JSON, so nothing may be framed or loaded.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
