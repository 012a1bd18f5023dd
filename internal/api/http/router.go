package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	Limiter        ratelimit.Limiter
	ResetRule      ratelimit.Rule
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// RegisterRoutes wires HTTP routes. Guards are attached per route, never on
// a group, because public and protected routes share prefixes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	authenticate := cfg.AuthMiddleware.Handle
	loginOnly := auth.RequirePurpose(domain.PurposeLogin)
	resetLimit := ratelimit.Middleware(cfg.Limiter, cfg.ResetRule,
		ratelimit.WithRecorder(cfg.Metrics),
		ratelimit.WithMiddlewareLogger(logger),
	)

	health := app.Group("/api/health")
	health.Get("", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	users := app.Group("/api/users")
	users.Post("/register", cfg.Users.Register)
	users.Post("/login", cfg.Users.Login)
	users.Get("/profile", authenticate, loginOnly, cfg.Users.Profile)
	users.Put("/change-password", authenticate, auth.RequireAuthenticated(), cfg.Users.ChangePassword)
	users.Put("/admin/:id/reset-password",
		authenticate, loginOnly, auth.RequireRole(domain.RoleSuperAdmin), resetLimit,
		cfg.Users.ResetPassword,
	)
	users.Get("/admin/:id/audit-logs",
		authenticate, loginOnly, auth.RequireRole(domain.RoleSuperAdmin),
		cfg.Users.AuditLogs,
	)
	users.Put("/:id", authenticate, loginOnly, auth.RequireSelf("id"), cfg.Users.Update)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/refresh-token", cfg.Auth.Refresh)
	authGroup.Post("/logout", authenticate, auth.RequireAuthenticated(), cfg.Auth.Logout)
}
