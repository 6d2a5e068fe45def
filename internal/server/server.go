package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/config"
	"github.com/hongminglow/istc-be/internal/http/handlers"
	"github.com/hongminglow/istc-be/internal/mail"
	"github.com/hongminglow/istc-be/internal/middleware"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/service"
	"github.com/hongminglow/istc-be/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner   *http.Server
	limiter *middleware.RateLimiter
}

// New wires up services, middleware and routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, sender mail.Sender, logger *slog.Logger) *Server {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	notifier := mail.NewNotifier(sender, mail.NotifierConfig{
		AppName:     cfg.AppName,
		FrontendURL: cfg.FrontendURL,
		AdminEmail:  cfg.AdminEmail,
		ResetTTL:    cfg.ResetTokenTTL,
	})

	authService := service.NewAuthService(service.AuthDeps{
		Users:      store,
		Roles:      store,
		Revoked:    store,
		Ledger:     service.NewResetLedger(store, cfg.ResetTokenTTL, cfg.ResetRequestInterval, nil),
		Tokens:     tokens,
		Hasher:     hasher,
		Notifier:   notifier,
		Logger:     logger,
		Revocation: cfg.TokenRevocation,
	})
	contactService := service.NewContactService(store, notifier, cfg.ContactInterval, logger, nil)
	adminService := service.NewAdminService(store, store, hasher)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
	guards := handlers.Guards{
		RateLimit:    limiter.Middleware,
		Authenticate: middleware.Authenticate(tokens, authService, logger),
		OptionalAuth: middleware.OptionalAuthenticate(tokens, authService, logger),
		Admin:        middleware.RequireRoles(models.AdminRole),
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), store, cfg.AppName).Register(mux)
	handlers.NewAuthHandler(authService, contactService, logger).Register(mux, guards)
	handlers.NewAdminHandler(adminService, logger).Register(mux, guards)

	handler := middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.RealIP(cfg.TrustedProxies),
		middleware.Logging(logger),
		middleware.SecureHeaders,
		middleware.CORS(cfg.CORSOrigins),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return &Server{inner: httpServer, limiter: limiter}
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	return s.inner.Shutdown(ctx)
}
