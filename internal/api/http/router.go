package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/observability"
	"github.com/helpdesk-ops/approval-service/internal/session"
)

// Server bundles the handlers and guards behind one route registry.
type Server struct {
	AuthHandler     *AuthHandler
	TicketHandler   *TicketHandler
	DecisionHandler *DecisionHandler
	AdminHandler    *AdminHandler
	Guards          *session.Guards
	Metrics         *observability.Metrics
	AppName         string
	Version         string
	ReadyCheck      func(c context.Context) error
}

// Register mounts every route on the app. Guard layering: intake and
// employee verification are open; "mine" reads need a session; the
// operations surface needs a session plus current allowlist membership.
func (s *Server) Register(app *fiber.App) {
	requireSession := auth.SessionRequired(s.Guards)
	requireIT := auth.ITRequired(s.Guards)

	app.Get("/health/live", s.live)
	app.Get("/health/ready", s.ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", s.AuthHandler.Login)
	authGroup.Post("/logout", requireSession, s.AuthHandler.Logout)
	authGroup.Get("/session", requireSession, s.AuthHandler.Session)
	authGroup.Post("/password/change", requireSession, s.AuthHandler.ChangePassword)
	authGroup.Post("/password/reset", s.AuthHandler.ResetPassword)
	authGroup.Get("/admins", requireIT, s.AuthHandler.ListAdmins)
	authGroup.Post("/admins", requireIT, s.AuthHandler.CreateAdmin)

	app.Post("/employees/verify", s.TicketHandler.VerifyEmployee)
	app.Get("/meta/business-units", s.TicketHandler.BusinessUnits)

	tickets := app.Group("/tickets")
	tickets.Post("/", s.TicketHandler.Create)
	tickets.Get("/mine", requireSession, s.TicketHandler.Mine)
	tickets.Get("/:number", requireSession, s.TicketHandler.GetOwn)
	tickets.Get("/:number/approvals", requireIT, s.AdminHandler.ApprovalHistory)
	// Decision auth is handled inside the handler: session or signed link.
	tickets.Post("/:number/decision", s.DecisionHandler.Submit)

	admin := app.Group("/admin", requireIT)
	admin.Get("/tickets", s.AdminHandler.SearchTickets)
	admin.Get("/tickets/:number", s.AdminHandler.GetTicket)
	admin.Post("/tickets/:number/status", s.AdminHandler.UpdateStatus)
	admin.Get("/approvals/overview", s.AdminHandler.ApprovalOverview)
	admin.Post("/approvals/resend", s.AdminHandler.ResendPendingApprovals)
	admin.Get("/approvers", s.AdminHandler.Approvers)
	admin.Put("/approvers", s.AdminHandler.ReplaceApprovers)
	admin.Get("/logs", s.AdminHandler.AuditTrail)
	admin.Get("/metrics", s.metrics)
}

func (s *Server) live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": s.AppName,
		"version": s.Version,
	})
}

func (s *Server) ready(c *fiber.Ctx) error {
	if s.ReadyCheck != nil {
		if err := s.ReadyCheck(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) metrics(c *fiber.Ctx) error {
	requests, errors := s.Metrics.Snapshot()
	return c.JSON(fiber.Map{"requests": requests, "errors": errors})
}
