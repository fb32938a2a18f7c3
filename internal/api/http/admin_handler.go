package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-ops/approval-service/internal/api/dto"
	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/repository"
	"github.com/helpdesk-ops/approval-service/internal/service"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// AdminHandler serves the operations surface.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler instantiates the handler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// SearchTickets runs a filtered ticket query from query parameters.
func (h *AdminHandler) SearchTickets(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Limit:  c.QueryInt("limit", 100),
		Offset: c.QueryInt("offset", 0),
	}
	if v := strings.TrimSpace(c.Query("employee_id")); v != "" {
		filter.EmployeeID = &v
	}
	if v := strings.ToLower(strings.TrimSpace(c.Query("email"))); v != "" {
		filter.Email = &v
	}
	for _, raw := range splitCSV(c.Query("category")) {
		filter.Categories = append(filter.Categories, domain.TicketCategory(raw))
	}
	for _, raw := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(raw))
	}
	if v := strings.TrimSpace(c.Query("approval_status")); v != "" {
		status := domain.ApprovalStatus(v)
		filter.ApprovalStatus = &status
	}
	if v := c.Query("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return apperrors.NewValidationError("created_from must be RFC 3339", nil)
		}
		filter.CreatedFrom = &t
	}
	if v := c.Query("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return apperrors.NewValidationError("created_to must be RFC 3339", nil)
		}
		filter.CreatedTo = &t
	}

	tickets, err := h.admin.SearchTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTickets(tickets))
}

// GetTicket returns one ticket without ownership restriction.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.admin.GetTicket(c.Context(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// UpdateStatus changes a ticket's operational lifecycle fields.
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.admin.UpdateStatus(c.Context(), c.Params("number"), repository.StatusUpdate{
		Status:     domain.TicketStatus(strings.TrimSpace(req.Status)),
		ITInCharge: req.ITInCharge,
		Resolution: req.Resolution,
	}, identity, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// ApprovalOverview reconstructs every workflow's position from the ledger.
func (h *AdminHandler) ApprovalOverview(c *fiber.Ctx) error {
	overview, err := h.admin.ApprovalOverview(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(overview)
}

// ApprovalHistory returns one ticket's decision trail.
func (h *AdminHandler) ApprovalHistory(c *fiber.Ctx) error {
	history, err := h.admin.ApprovalHistory(c.Context(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ticket_number": c.Params("number"), "decisions": history})
}

// Approvers returns the current approver directory.
func (h *AdminHandler) Approvers(c *fiber.Ctx) error {
	rows, err := h.admin.Approvers(c.Context())
	if err != nil {
		return err
	}
	entries := make([]dto.ApproverEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.ApproverEntry{
			LineOfBusiness: row.LineOfBusiness,
			Approvers:      row.Approvers,
		})
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// ReplaceApprovers swaps the approver directory atomically.
func (h *AdminHandler) ReplaceApprovers(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReplaceApproversRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	rows := make([]repository.ApproverRow, 0, len(req.Entries))
	for _, entry := range req.Entries {
		rows = append(rows, repository.ApproverRow{
			LineOfBusiness: entry.LineOfBusiness,
			Approvers:      entry.Approvers,
		})
	}
	if err := h.admin.ReplaceApprovers(c.Context(), rows, identity); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResendPendingApprovals re-notifies every in-flight workflow's target.
func (h *AdminHandler) ResendPendingApprovals(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	sent, err := h.admin.ResendPendingApprovals(c.Context(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reminders_sent": sent})
}

// AuditTrail lists recent audit entries.
func (h *AdminHandler) AuditTrail(c *fiber.Ctx) error {
	entries, err := h.admin.AuditTrail(c.Context(), c.Query("ticket_number"), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
