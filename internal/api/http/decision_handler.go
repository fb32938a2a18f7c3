package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-ops/approval-service/internal/api/dto"
	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/session"
	"github.com/helpdesk-ops/approval-service/internal/workflow"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// DecisionHandler serves approver decision submissions. Two credentials are
// accepted: a live session, or the signed token embedded in the approver's
// emailed link. Either way the engine sees a proven approver email.
type DecisionHandler struct {
	engine *workflow.Engine
	guards *session.Guards
	links  *auth.LinkTokenManager
}

// NewDecisionHandler instantiates the handler.
func NewDecisionHandler(engine *workflow.Engine, guards *session.Guards, links *auth.LinkTokenManager) *DecisionHandler {
	return &DecisionHandler{engine: engine, guards: guards, links: links}
}

// Submit records one approver's decision on a ticket.
func (h *DecisionHandler) Submit(c *fiber.Ctx) error {
	number := c.Params("number")

	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	action := domain.DecisionAction(strings.TrimSpace(strings.ToLower(req.Action)))

	approverEmail, linkAction, err := h.authorize(c, number)
	if err != nil {
		return err
	}
	if linkAction != "" {
		// The link token fixes the action; a conflicting body is a
		// forged or mangled request.
		if action != "" && action != linkAction {
			return apperrors.NewValidationError("action does not match the signed link", nil)
		}
		action = linkAction
	}

	state, err := h.engine.RecordDecision(c.Context(), number, approverEmail, action, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(dto.DecisionResponse{
		TicketNumber:   number,
		Phase:          string(state.Phase),
		Approvals:      state.Approvals,
		ApprovalStatus: string(state.Status()),
	})
}

// authorize resolves the proven approver email from either credential. The
// second return is the action a link token binds, empty for sessions.
func (h *DecisionHandler) authorize(c *fiber.Ctx, ticketNumber string) (string, domain.DecisionAction, error) {
	if link := c.Query("link"); link != "" {
		claims, err := h.links.Parse(link)
		if err != nil {
			return "", "", apperrors.NewUnauthorized("invalid or expired approval link")
		}
		if claims.TicketNumber != ticketNumber {
			return "", "", apperrors.NewForbidden("approval link is for a different ticket")
		}
		return claims.ApproverEmail, claims.Action, nil
	}

	header := c.Get(fiber.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	identity, err := h.guards.RequireSession(c.Context(), token)
	if err != nil {
		return "", "", err
	}
	return identity.Email, "", nil
}
