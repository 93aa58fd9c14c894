// Package api provides the HTTP API server and handlers for IronCrew.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ironcrew/ironcrew-server/internal/auth"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/ratelimit"
	"github.com/ironcrew/ironcrew-server/internal/sse"
	"github.com/ironcrew/ironcrew-server/internal/validation"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds everything NewServer wires into the router.
type Options struct {
	Services   *Services
	Tokens     *auth.TokenService
	Database   Pinger
	SSEManager *sse.Manager
	Metrics    *metrics.Metrics
	Limiter    *ratelimit.KeyedRateLimiter
	Logger     *slog.Logger
	// Checks are optional dependencies reported by /health, keyed by name.
	Checks map[string]Pinger
	// CORSOrigins defaults to any origin.
	CORSOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	tokens     *auth.TokenService
	checks     []healthCheck
	sseManager *sse.Manager
	metrics    *metrics.Metrics
	limiter    *ratelimit.KeyedRateLimiter
	validator  *validation.Validator
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(opts Options) *Server {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		services:   opts.Services,
		tokens:     opts.Tokens,
		sseManager: opts.SSEManager,
		metrics:    m,
		limiter:    opts.Limiter,
		validator:  validation.New(),
		router:     chi.NewRouter(),
		logger:     opts.Logger,
	}

	s.checks = s.buildChecks(opts.Database, opts.Checks)
	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("IronCrew API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()
	s.api.UseMiddleware(s.rateLimitMiddleware)

	s.registerHealthRoutes()
	s.registerLeaderboardRoutes()
	s.registerProgressionRoutes()
	s.registerWorkoutRoutes()
	s.registerMatchmakingRoutes()
	s.registerCompetitionRoutes()
	s.registerDuelRoutes()

	if s.sseManager != nil {
		events := sse.NewHandler(s.sseManager, s.authenticateStream, s.logger)
		s.router.Get("/api/v1/events", events.ServeHTTP)
	}
	s.router.Handle("/metrics", s.metrics.Handler())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(authMiddleware(s.tokens))
	s.router.Use(s.requestLogger)
}

// bearer is the security requirement for authenticated operations.
var bearer = []map[string][]string{{"bearer": {}}}
