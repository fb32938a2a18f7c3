package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	"github.com/helpdesk-ops/approval-service/internal/repository"
	"github.com/helpdesk-ops/approval-service/internal/workflow"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// AdminService exposes the operations surface: ticket search, lifecycle
// updates, approver directory management, and workflow oversight.
type AdminService struct {
	tickets    repository.TicketRepository
	approvals  repository.ApprovalRepository
	approvers  repository.ApproverRepository
	audits     repository.AuditLogRepository
	engine     *workflow.Engine
	dispatcher events.Dispatcher
	itMailbox  string
	logger     *zap.Logger
}

// NewAdminService instantiates the service.
func NewAdminService(
	tickets repository.TicketRepository,
	approvals repository.ApprovalRepository,
	approvers repository.ApproverRepository,
	audits repository.AuditLogRepository,
	engine *workflow.Engine,
	dispatcher events.Dispatcher,
	itMailbox string,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		tickets:    tickets,
		approvals:  approvals,
		approvers:  approvers,
		audits:     audits,
		engine:     engine,
		dispatcher: dispatcher,
		itMailbox:  itMailbox,
		logger:     logger,
	}
}

// SearchTickets runs an admin filter query.
func (s *AdminService) SearchTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// GetTicket returns one ticket by number with no ownership restriction.
func (s *AdminService) GetTicket(ctx context.Context, number string) (*domain.Ticket, error) {
	return s.tickets.GetByNumber(ctx, number)
}

// UpdateStatus changes a ticket's operational lifecycle fields. The
// approval projection is untouched: lifecycle and approval are independent
// tracks. Completing a ticket notifies the requester.
func (s *AdminService) UpdateStatus(ctx context.Context, number string, update repository.StatusUpdate, actor domain.Identity, comment string) (*domain.Ticket, error) {
	switch update.Status {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusOnHold,
		domain.TicketStatusCompleted, domain.TicketStatusReopened, domain.TicketStatusCanceled:
	default:
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": update.Status})
	}

	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	if err := s.tickets.UpdateStatusFields(ctx, number, update); err != nil {
		return nil, err
	}
	ticket.Status = update.Status
	if update.ITInCharge != "" {
		ticket.ITInCharge = update.ITInCharge
	}
	if update.Resolution != "" {
		ticket.Resolution = update.Resolution
	}

	s.appendAudit(ctx, number, "status_changed", actor.Email,
		string(oldStatus)+" -> "+string(update.Status), comment)
	s.publish(ctx, events.Event{
		Type:         events.EventTicketStatusChanged,
		TicketNumber: number,
		Recipients:   []string{ticket.Email},
		Actor:        actor.Email,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: update.Status,
			Comment:   comment,
		},
	})
	return ticket, nil
}

// TicketWorkflow is one ticket's workflow position for the oversight view.
type TicketWorkflow struct {
	TicketNumber   string                    `json:"ticket_number"`
	RequesterEmail string                    `json:"requester_email"`
	LineOfBusiness string                    `json:"line_of_business"`
	ApprovalStatus domain.ApprovalStatus     `json:"approval_status"`
	Snapshot       []string                  `json:"snapshot"`
	Approvals      int                       `json:"approvals"`
	Target         string                    `json:"target,omitempty"`
	Decisions      []domain.ApprovalDecision `json:"decisions"`
}

// ApprovalOverview reconstructs every approval-bearing ticket's position by
// replaying the ledger, grouped per ticket and ordered by ticket number.
func (s *AdminService) ApprovalOverview(ctx context.Context) ([]TicketWorkflow, error) {
	all, err := s.approvals.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byTicket := make(map[string][]domain.ApprovalDecision)
	for _, d := range all {
		byTicket[d.TicketNumber] = append(byTicket[d.TicketNumber], d)
	}

	pending, err := s.tickets.ListPendingApproval(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(pending))
	numbers := make([]string, 0, len(byTicket)+len(pending))
	for _, t := range pending {
		seen[t.Number] = true
		numbers = append(numbers, t.Number)
	}
	for number := range byTicket {
		if !seen[number] {
			numbers = append(numbers, number)
		}
	}
	sort.Strings(numbers)

	overview := make([]TicketWorkflow, 0, len(numbers))
	for _, number := range numbers {
		ticket, err := s.tickets.GetByNumber(ctx, number)
		if err != nil {
			s.logger.Warn("overview: ticket load failed", zap.String("ticket", number), zap.Error(err))
			continue
		}
		decisions := byTicket[number]
		state := workflow.ComputeState(ticket.ApproverSnapshot, decisions)
		row := TicketWorkflow{
			TicketNumber:   ticket.Number,
			RequesterEmail: ticket.Email,
			LineOfBusiness: ticket.LineOfBusiness,
			ApprovalStatus: state.Status(),
			Snapshot:       ticket.ApproverSnapshot,
			Approvals:      state.Approvals,
			Decisions:      decisions,
		}
		if !state.Terminal() && state.Approvals < len(ticket.ApproverSnapshot) {
			row.Target = ticket.ApproverSnapshot[state.Approvals]
		}
		overview = append(overview, row)
	}
	return overview, nil
}

// ApprovalHistory returns one ticket's decision trail in recorded order.
func (s *AdminService) ApprovalHistory(ctx context.Context, number string) ([]domain.ApprovalDecision, error) {
	if _, err := s.tickets.GetByNumber(ctx, number); err != nil {
		return nil, err
	}
	return s.approvals.ListByTicket(ctx, number)
}

// Approvers returns the current directory of approver chains per line of
// business. Edits here never affect tickets already in flight.
func (s *AdminService) Approvers(ctx context.Context) ([]repository.ApproverRow, error) {
	return s.approvers.All(ctx)
}

// ReplaceApprovers swaps the whole approver directory atomically.
func (s *AdminService) ReplaceApprovers(ctx context.Context, entries []repository.ApproverRow, actor domain.Identity) error {
	for _, entry := range entries {
		if strings.TrimSpace(entry.LineOfBusiness) == "" {
			return apperrors.NewValidationError("line of business must not be empty", nil)
		}
		for _, email := range entry.Approvers {
			if !strings.Contains(email, "@") {
				return apperrors.NewValidationError("approver entry is not an email address", map[string]any{
					"line_of_business": entry.LineOfBusiness,
					"value":            email,
				})
			}
		}
	}
	if err := s.approvers.Replace(ctx, entries); err != nil {
		return err
	}
	s.appendAudit(ctx, "", "approvers_replaced", actor.Email, "", "")
	return nil
}

// ResendPendingApprovals re-notifies the current target of every in-flight
// workflow and reports how many reminders went out.
func (s *AdminService) ResendPendingApprovals(ctx context.Context, actor domain.Identity) (int, error) {
	sent, err := s.engine.ResendPending(ctx)
	if err != nil {
		return 0, err
	}
	s.appendAudit(ctx, "", "approval_reminders_sent", actor.Email, "", "")
	return sent, nil
}

// AuditTrail lists recent audit entries, optionally scoped to one ticket.
func (s *AdminService) AuditTrail(ctx context.Context, ticketNumber string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.audits.List(ctx, ticketNumber, limit)
}

func (s *AdminService) appendAudit(ctx context.Context, ticketNumber, action, actor, details, remarks string) {
	entry := &domain.AuditEntry{
		TicketNumber: ticketNumber,
		Action:       action,
		PerformedBy:  actor,
		Details:      details,
		Remarks:      remarks,
		CreatedAt:    time.Now(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *AdminService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event dispatch failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
