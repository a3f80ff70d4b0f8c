package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	Realtime       *handlers.RealtimeHandler
	AuthMiddleware *auth.AuthMiddleware
	// UploadsDir is served under UploadsPrefix when the local storage driver is used.
	UploadsDir    string
	UploadsPrefix string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	if cfg.UploadsDir != "" {
		app.Static(cfg.UploadsPrefix, cfg.UploadsDir)
	}

	if cfg.Realtime != nil {
		app.Get("/ws", cfg.Realtime.RequireUpgrade, cfg.AuthMiddleware.HandleQueryToken, cfg.Realtime.Upgrade())
	}

	api := app.Group("/api")
	protect := cfg.AuthMiddleware.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/user/signup", cfg.Auth.UserSignup)
	authGroup.Post("/user/login", cfg.Auth.UserLogin)
	authGroup.Post("/admin/signup", cfg.Auth.AdminSignup)
	authGroup.Post("/admin/login", cfg.Auth.AdminLogin)
	authGroup.Get("/admin/all-admins", protect, auth.RequireAdmin(), cfg.Auth.ListAdmins)

	tickets := api.Group("/tickets", protect)
	tickets.Post("/", auth.RequireUser(), cfg.Tickets.CreateTicket)
	tickets.Get("/my-tickets", cfg.Tickets.MyTickets)
	tickets.Get("/admin/all-tickets", auth.RequireAdmin(), cfg.Tickets.AllTickets)
	tickets.Get("/admin/assigned-tickets", auth.RequireAdmin(), cfg.Tickets.AssignedTickets)
	tickets.Get("/admin/all-admins", auth.RequireAdmin(), cfg.Auth.ListAdmins)
	tickets.Get("/admin/ticket-stats", auth.RequireAdmin(), cfg.Tickets.Stats)
	tickets.Post("/:id/assign", auth.RequireAdmin(), cfg.Tickets.Assign)
	tickets.Put("/:id/status", auth.RequireAdmin(), cfg.Tickets.UpdateStatus)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Post("/:id/reply", cfg.Tickets.Reply)
	tickets.Put("/:ticketId/messages/:messageId/edit", cfg.Tickets.EditMessage)
	tickets.Delete("/:ticketId/messages/:messageId", cfg.Tickets.DeleteMessage)
	tickets.Get("/:id/messages", cfg.Tickets.Messages)
	tickets.Get("/:id/history", auth.RequireAdmin(), cfg.Tickets.History)
	tickets.Get("/:id", cfg.Tickets.Get)

	admin := api.Group("/admin", protect, auth.RequireAdmin())
	admin.Get("/all-admins", cfg.Auth.ListAdmins)
	admin.Get("/all-tickets", cfg.Tickets.AllTickets)
	admin.Get("/my-tickets", cfg.Tickets.AssignedTickets)
	admin.Get("/ticket-stats", cfg.Tickets.Stats)
	admin.Patch("/assign/:id", cfg.Tickets.Assign)

	chat := api.Group("/chat", protect)
	chat.Post("/send", cfg.Chat.Send)
	chat.Post("/mark-read", cfg.Chat.MarkRead)
	chat.Get("/ticket/:ticketId", cfg.Chat.TicketMessages)
	chat.Post("/ticket/:ticketId/send", cfg.Chat.SendToTicket)
	chat.Post("/:id/delivered", cfg.Chat.Delivered)
	chat.Post("/:id/read", cfg.Chat.Read)
	chat.Get("/:chatType", cfg.Chat.List)
}
