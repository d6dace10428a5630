// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the store, services,
// handlers and middleware, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes (public vs admin)
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config.Config, *slog.Logger, auth.Verifier (firebase or local)
//
// server.New creates:
//
//	sqlstore.DB → PostService, IdentityGate → PostHandler, SessionHandler
//	prometheus.Registry → metrics.Collector → services + request logger
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/handler"
	"github.com/sakif/quantfident-cms/internal/metrics"
	"github.com/sakif/quantfident-cms/internal/middleware"
	"github.com/sakif/quantfident-cms/internal/repository/sqlstore"
	"github.com/sakif/quantfident-cms/internal/service"
	"github.com/sakif/quantfident-cms/internal/validation"
)

// Config holds server configuration.
type Config struct {
	Port            int
	DatabaseURL     string
	AdminEmails     []string
	CheckRevoked    bool // revocation check on admin routes
	AllowedOrigins  []string
	RateLimit       middleware.RateLimitConfig
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the rate limiter's cleanup
// goroutine. Both are released when Start returns (or by Close when the
// server is never started, e.g. in tests).
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqlstore.DB
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
}

// New opens the database, wires every layer and builds the router.
//
// verifier decides how bearer tokens are checked (Firebase in production,
// local HS256 tokens in development); the server does not care which.
func New(cfg Config, verifier auth.Verifier, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqlstore.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === METRICS ===
	// A private registry (not prometheus.DefaultRegisterer) so several
	// servers can exist in one process, which tests rely on.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		limiter:  middleware.NewRateLimiter(cfg.RateLimit, logger),
		registry: registry,
	}

	s.setupRoutes(verifier, metrics.NewCollector(registry))

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                          → DB ping
// GET    /metrics                          → Prometheus scrape
// GET    /api/auth/session                 → who am I (token required)
// GET    /api/blog/categories              → editor categories
// GET    /api/blog/posts?limit=N           → published posts
// GET    /api/blog/posts/slug/{slug}       → published post by slug (+1 view)
// GET    /api/blog/posts/{id}              → post by ID (admin token optional)
// GET    /api/blog/admin/posts             → all posts            [admin]
// POST   /api/blog/posts                   → create               [admin]
// PUT    /api/blog/posts/{id}              → partial update       [admin]
// DELETE /api/blog/posts/{id}              → delete               [admin]
// POST   /api/blog/posts/{id}/publish      → publish              [admin]
// POST   /api/blog/posts/{id}/archive      → archive              [admin]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger: logs each request and records HTTP metrics
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflights before anything below can reject them
// 6. Rate limit: per client IP, API routes only
func (s *Server) setupRoutes(verifier auth.Verifier, rec *metrics.Collector) {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, rec))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false, // bearer tokens, no cookies
		MaxAge:           300,
	}))

	// === Services ===
	// DEPENDENCY CHAIN:
	//   s.db (sqlstore.DB) → implements PostRepository and UserRepository
	//   PostService / IdentityGate receive the repository interfaces
	//   handlers receive the services
	postService := service.NewPostService(s.db, s.logger, service.WithMetrics(rec))
	gate := service.NewIdentityGate(verifier, s.db, s.config.AdminEmails, s.config.CheckRevoked,
		s.logger, service.WithMetrics(rec))

	postHandler := handler.NewPostHandler(postService, validation.New(), s.logger)
	sessionHandler := handler.NewSessionHandler(gate, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	requireAdmin := auth.RequireAdmin(gate, handler.WriteError)
	adminIfPresent := auth.AdminIfPresent(gate, handler.WriteError)

	// === Operational Routes ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get("/auth/session", sessionHandler.HandleSession)

		r.Route("/blog", func(r chi.Router) {
			// Public
			r.Get("/categories", postHandler.HandleCategories)
			r.Get("/posts", postHandler.HandleListPublished)
			r.Get("/posts/slug/{slug}", postHandler.HandleGetBySlug)
			r.With(adminIfPresent).Get("/posts/{id}", postHandler.HandleGet)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/admin/posts", postHandler.HandleListAll)
				r.Post("/posts", postHandler.HandleCreate)
				r.Put("/posts/{id}", postHandler.HandleUpdate)
				r.Delete("/posts/{id}", postHandler.HandleDelete)
				r.Post("/posts/{id}/publish", postHandler.HandlePublish)
				r.Post("/posts/{id}/archive", postHandler.HandleArchive)
			})
		})
	})
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and stops the rate limiter.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (ShutdownTimeout)
// 3. Close the database connection and stop background goroutines
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.db.Dialect()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
