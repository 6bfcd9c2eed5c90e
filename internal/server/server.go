package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hongminglow/pos-backend/internal/auth"
	"github.com/hongminglow/pos-backend/internal/config"
	"github.com/hongminglow/pos-backend/internal/http/handlers"
	"github.com/hongminglow/pos-backend/internal/http/respond"
	"github.com/hongminglow/pos-backend/internal/metrics"
	"github.com/hongminglow/pos-backend/internal/middleware"
	"github.com/hongminglow/pos-backend/internal/storage"
)

const (
	maxBodyBytes    = 10 << 20
	janitorInterval = time.Minute
	unmatchedRoute  = "unmatched"
)

// Deps are the collaborators the server needs. DB may be nil, in which case
// the health check skips the ping. Registry defaults to a fresh registry.
type Deps struct {
	Users    storage.UserStore
	Audit    storage.AuditStore
	DB       storage.Pinger
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner   *http.Server
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// New wires up middleware and routes and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Users == nil || deps.Audit == nil {
		return nil, errors.New("server: user and audit stores are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		return nil, err
	}
	m := metrics.New(reg)
	svc := auth.NewService(deps.Users, deps.Audit, tokens, hasher,
		auth.WithLogger(logger),
		auth.WithRecorder(m))

	limiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.TrustProxy)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger, cfg.TrustProxy))
	r.Use(m.Instrument(routePattern))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		handlers.NewHealthHandler(time.Now(), deps.DB, logger).Register(r)
		r.Route("/auth", func(r chi.Router) {
			handlers.NewAuthHandler(svc, logger, cfg.TrustProxy).
				Register(r, middleware.Authenticate(svc, logger))
		})
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer, limiter: limiter, logger: logger}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start runs the rate limiter janitor and serves HTTP traffic until the
// server is shut down. The janitor stops when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.limiter.Run(ctx, janitorInterval)
	s.logger.Info("http server listening", "addr", s.inner.Addr)
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// routePattern labels metrics by the matched chi pattern so ids in paths do
// not explode label cardinality.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
