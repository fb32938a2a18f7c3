package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-ops/approval-service/internal/api/dto"
	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/service"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// TicketHandler serves intake and requester-facing reads.
type TicketHandler struct {
	tickets *service.TicketService
}

// NewTicketHandler instantiates the handler.
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Create handles ticket intake.
func (h *TicketHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.tickets.Create(c.Context(), service.TicketIntake{
		EmployeeID:        req.EmployeeID,
		EmployeeName:      req.EmployeeName,
		LineOfBusiness:    req.LineOfBusiness,
		OfficeSite:        req.OfficeSite,
		Email:             req.Email,
		Category:          domain.TicketCategory(strings.TrimSpace(req.Category)),
		Priority:          domain.TicketPriority(strings.TrimSpace(req.Priority)),
		RequestType:       req.RequestType,
		Description:       req.Description,
		AdditionalDetails: req.AdditionalDetails,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTicket(ticket))
}

// Mine lists the caller's own tickets.
func (h *TicketHandler) Mine(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListMine(c.Context(), identity.Email)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTickets(tickets))
}

// GetOwn returns one of the caller's own tickets.
func (h *TicketHandler) GetOwn(c *fiber.Ctx) error {
	identity, err := auth.IdentityFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetOwn(c.Context(), identity.Email, c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// VerifyEmployee resolves an employee by private code.
func (h *TicketHandler) VerifyEmployee(c *fiber.Ctx) error {
	var req dto.VerifyEmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	employee, err := h.tickets.VerifyEmployee(c.Context(), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromEmployee(employee))
}

// BusinessUnits lists distinct lines of business for the intake form.
func (h *TicketHandler) BusinessUnits(c *fiber.Ctx) error {
	units, err := h.tickets.BusinessUnits(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"business_units": units})
}
