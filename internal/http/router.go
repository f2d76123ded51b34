package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrocrm/identity/internal/config"
	authhandler "github.com/agrocrm/identity/internal/http/features/auth"
	sessionhandler "github.com/agrocrm/identity/internal/http/features/session"
	"github.com/agrocrm/identity/internal/http/middleware"
	"github.com/agrocrm/identity/internal/httputil"
	"github.com/agrocrm/identity/pkg/auth"
	"github.com/agrocrm/identity/pkg/token"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Codec           *token.Codec
	AuthService     *auth.AuthService
	SessionService  *auth.SessionService
	Users           sessionhandler.UserDirectory
	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	MaxBodySize     int64
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Authenticate runs on every request and attaches a
	// principal when the bearer token and its session both check out; it
	// never rejects on its own.
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxBodySize))
	r.Use(middleware.Authenticate(cfg.Codec, cfg.SessionService, cfg.Logger))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimit, cfg.Logger)

	authHandler := authhandler.NewHandler(cfg.Logger, cfg.AuthService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["login"])
		r.Post("/auth/login", authHandler.Login)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["refresh"])
		r.Post("/auth/refresh", authHandler.Refresh)
	})
	r.Post("/auth/logout", authHandler.Logout)
	r.Post("/auth/logout-all", authHandler.LogoutAll)

	sessionHandler := sessionhandler.NewHandler(cfg.Logger, cfg.SessionService, cfg.Users)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/api/sessions", sessionHandler.List)
		r.Delete("/api/sessions/{sessionID}", sessionHandler.Terminate)
	})

	return r
}
