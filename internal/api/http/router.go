package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sellerdesk/ozon-support/internal/api/http/handlers"
	"github.com/sellerdesk/ozon-support/internal/auth"
	"github.com/sellerdesk/ozon-support/internal/observability"
)

// AdminPrefix is the mount point of operator routes.
const AdminPrefix = "/admin/ozon-support"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Files          *handlers.FilesHandler
	Orders         *handlers.OrdersHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	protected.Get("/me", cfg.Auth.Me)
	protected.Post("/password/change", cfg.Auth.ChangePassword)

	admin := app.Group(AdminPrefix, cfg.AuthMiddleware.Handle, auth.RequireOperator())
	admin.Get("/tickets", cfg.Tickets.ListTickets)
	admin.Get("/tickets/:id", cfg.Tickets.GetTicket)
	admin.Post("/tickets/:id/reply", cfg.Tickets.Reply)
	admin.Post("/tickets/:id/files", cfg.Tickets.SendFile)
	admin.Get("/tickets/:id/dead-letters", cfg.Tickets.DeadLetters)
	admin.Get("/files/:account/:ticket/:message/:file/info", cfg.Files.Download)
	admin.Post("/orders", cfg.Orders.OpenChat)
	admin.Put("/orders/index", cfg.Orders.IndexOrder)
	admin.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": cfg.Metrics.Snapshot()})
	})
}
