package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/school-support/internal/api/http/handlers"
	"github.com/spec-kit/school-support/internal/auth"
	"github.com/spec-kit/school-support/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Leader         *handlers.LeaderHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every route except login and password change
// is closed to accounts still on the default password.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	session := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	session.Post("/password/change", cfg.Auth.ChangePassword)
	session.Get("/me", cfg.Auth.Me)

	secured := func(roles ...domain.Role) []fiber.Handler {
		return []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequirePasswordChanged(), auth.RequireRole(roles...)}
	}

	tickets := app.Group("/tickets", secured()...)
	tickets.Post("/self-help", cfg.Tickets.SelfHelp)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/mine", cfg.Tickets.ListMine)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)

	workers := auth.RequireRole(domain.RoleLeader, domain.RoleTechnician)
	tickets.Post("/:id/progress", workers, cfg.Tickets.Progress)
	tickets.Post("/:id/resolve", workers, cfg.Tickets.Resolve)
	tickets.Post("/:id/remarks", workers, cfg.Tickets.Remark)
	tickets.Post("/:id/reassign", workers, cfg.Tickets.RequestReassignment)

	work := app.Group("/work", secured(domain.RoleLeader, domain.RoleTechnician)...)
	work.Get("/queue", cfg.Tickets.WorkQueue)

	leader := app.Group("/leader", secured(domain.RoleLeader)...)
	leader.Get("/pool", cfg.Leader.Pool)
	leader.Get("/technicians", cfg.Leader.Technicians)
	leader.Post("/tickets/:id/assign", cfg.Leader.Assign)

	analytics := app.Group("/analytics", secured(domain.RoleLeader, domain.RoleAdmin)...)
	analytics.Get("/breakdown", cfg.Leader.Breakdown)
	analytics.Get("/performance", cfg.Leader.Performance)

	admin := app.Group("/admin", secured(domain.RoleAdmin)...)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Post("/users", cfg.Admin.CreateUser)
	admin.Post("/users/import", cfg.Admin.ImportUsers)
	admin.Post("/users/:id/deactivate", cfg.Admin.DeactivateUser)
	admin.Post("/users/:id/reset-password", cfg.Admin.ResetPassword)
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Post("/archive", cfg.Admin.Archive)
	admin.Get("/archive", cfg.Admin.SearchArchive)
}
