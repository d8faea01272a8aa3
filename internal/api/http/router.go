package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/storage"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AdminUsers     *handlers.AdminUsersHandler
	Webhooks       *handlers.WebhooksHandler
	AuthMiddleware *auth.AuthMiddleware
	UploadDir      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.UploadDir != "" {
		app.Static(strings.TrimSuffix(storage.PublicPrefix, "/"), cfg.UploadDir, fiber.Static{Browse: false})
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	app.Post("/webhooks/incoming", cfg.Webhooks.Incoming)

	app.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", auth.RequireStaff(), cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/users", cfg.AdminUsers.List)
	admin.Post("/users", cfg.AdminUsers.Create)
	admin.Patch("/users/:id", cfg.AdminUsers.Update)
	admin.Delete("/users/:id", cfg.AdminUsers.Delete)
}
