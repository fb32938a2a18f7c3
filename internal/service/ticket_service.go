package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	"github.com/helpdesk-ops/approval-service/internal/repository"
	"github.com/helpdesk-ops/approval-service/internal/workflow"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// TicketIntake is the payload accepted from requesters.
type TicketIntake struct {
	EmployeeID        string
	EmployeeName      string
	LineOfBusiness    string
	OfficeSite        string
	Email             string
	Category          domain.TicketCategory
	Priority          domain.TicketPriority
	RequestType       string
	Description       string
	AdditionalDetails string
}

// TicketService handles ticket intake and requester-facing reads.
type TicketService struct {
	tickets    repository.TicketRepository
	employees  repository.EmployeeRepository
	audits     repository.AuditLogRepository
	engine     *workflow.Engine
	dispatcher events.Dispatcher
	itMailbox  string
	logger     *zap.Logger
}

// NewTicketService instantiates the service.
func NewTicketService(
	tickets repository.TicketRepository,
	employees repository.EmployeeRepository,
	audits repository.AuditLogRepository,
	engine *workflow.Engine,
	dispatcher events.Dispatcher,
	itMailbox string,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		tickets:    tickets,
		employees:  employees,
		audits:     audits,
		engine:     engine,
		dispatcher: dispatcher,
		itMailbox:  itMailbox,
		logger:     logger,
	}
}

// Create registers a new ticket and, for categories that need sign-off,
// starts the approval workflow with the approver list frozen as of now.
func (s *TicketService) Create(ctx context.Context, intake TicketIntake) (*domain.Ticket, error) {
	if err := validateIntake(&intake); err != nil {
		return nil, err
	}

	number, err := s.tickets.NextNumber(ctx)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Number:            number,
		EmployeeID:        intake.EmployeeID,
		EmployeeName:      intake.EmployeeName,
		LineOfBusiness:    intake.LineOfBusiness,
		OfficeSite:        intake.OfficeSite,
		Email:             strings.ToLower(strings.TrimSpace(intake.Email)),
		Category:          intake.Category,
		Priority:          intake.Priority,
		RequestType:       intake.RequestType,
		Description:       intake.Description,
		AdditionalDetails: intake.AdditionalDetails,
		Status:            domain.TicketStatusOpen,
		ApprovalStatus:    domain.ApprovalNotApplicable,
	}
	if ticket.Category.RequiresApproval() {
		ticket.ApprovalStatus = domain.ApprovalPending
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, ticket.Number, "ticket_created", ticket.Email, string(ticket.Category))
	recipients := []string{ticket.Email}
	if s.itMailbox != "" {
		recipients = append(recipients, s.itMailbox)
	}
	s.publish(ctx, events.Event{
		Type:         events.EventTicketCreated,
		TicketNumber: ticket.Number,
		Recipients:   recipients,
		Actor:        ticket.Email,
		Payload: events.TicketCreatedPayload{
			Category:       ticket.Category,
			Priority:       ticket.Priority,
			LineOfBusiness: ticket.LineOfBusiness,
			EmployeeName:   ticket.EmployeeName,
			RequesterEmail: ticket.Email,
		},
	})

	if ticket.Category.RequiresApproval() {
		snapshot, err := s.engine.CreateApprovalFlow(ctx, ticket.Number, ticket.LineOfBusiness)
		if err != nil {
			return nil, err
		}
		ticket.ApproverSnapshot = snapshot
		if len(snapshot) == 0 {
			ticket.ApprovalStatus = domain.ApprovalApproved
		}
	}
	return ticket, nil
}

// VerifyEmployee resolves an employee by their private code. The code never
// leaves the caller in clear form server-side; lookup is by digest.
func (s *TicketService) VerifyEmployee(ctx context.Context, code string) (*domain.Employee, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("employee code is required", nil)
	}
	return s.employees.GetByCodeHash(ctx, auth.EmployeeCodeHash(code))
}

// BusinessUnits lists the distinct lines of business known to the
// employee directory, for intake form population.
func (s *TicketService) BusinessUnits(ctx context.Context) ([]string, error) {
	return s.employees.BusinessUnits(ctx)
}

// ListMine returns the caller's own tickets, newest first.
func (s *TicketService) ListMine(ctx context.Context, callerEmail string) ([]domain.Ticket, error) {
	email := strings.ToLower(strings.TrimSpace(callerEmail))
	if email == "" {
		return nil, apperrors.NewValidationError("caller email is required", nil)
	}
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{Email: &email})
}

// GetOwn returns one ticket, enforcing that the caller is its requester.
func (s *TicketService) GetOwn(ctx context.Context, callerEmail, number string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(ticket.Email), strings.TrimSpace(callerEmail)) {
		return nil, apperrors.NewForbidden("you may only access your own records")
	}
	return ticket, nil
}

func (s *TicketService) appendAudit(ctx context.Context, ticketNumber, action, actor, details string) {
	entry := &domain.AuditEntry{
		TicketNumber: ticketNumber,
		Action:       action,
		PerformedBy:  actor,
		Details:      details,
		CreatedAt:    time.Now(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed", zap.String("ticket", ticketNumber), zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event dispatch failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func validateIntake(intake *TicketIntake) error {
	missing := map[string]any{}
	if strings.TrimSpace(intake.EmployeeID) == "" {
		missing["employee_id"] = "required"
	}
	if strings.TrimSpace(intake.EmployeeName) == "" {
		missing["employee_name"] = "required"
	}
	if strings.TrimSpace(intake.Email) == "" {
		missing["email"] = "required"
	}
	if strings.TrimSpace(intake.Description) == "" {
		missing["description"] = "required"
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", missing)
	}

	switch intake.Category {
	case domain.CategoryIncident, domain.CategoryServiceRequest, domain.CategoryInquiry:
	default:
		return apperrors.NewValidationError("unknown ticket category", map[string]any{"category": intake.Category})
	}
	if intake.Category.RequiresApproval() && strings.TrimSpace(intake.LineOfBusiness) == "" {
		return apperrors.NewValidationError("line of business is required for approval-bearing tickets", nil)
	}
	if intake.Priority == "" {
		intake.Priority = domain.TicketPriorityMedium
	}
	return nil
}
