package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sukudha/academy-service/internal/api/http/handlers"
	"github.com/sukudha/academy-service/internal/auth"
	"github.com/sukudha/academy-service/internal/domain"
	"github.com/sukudha/academy-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.Middleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/student/register", cfg.Auth.RegisterStudent)
	authGroup.Post("/student/login", cfg.Auth.LoginStudent)
	authGroup.Post("/admin/register", cfg.Auth.RegisterAdmin)
	authGroup.Post("/admin/login", cfg.Auth.LoginAdmin)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)

	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
	authGroup.Patch("/users/:id/status", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), cfg.Users.SetStatus)
}
