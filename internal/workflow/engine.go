package workflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// TicketStore is the slice of ticket persistence the engine needs. The
// engine only reads identifying fields and writes the cached approval
// projection and the one-time snapshot.
type TicketStore interface {
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListPendingApproval(ctx context.Context) ([]domain.Ticket, error)
	SetApproverSnapshot(ctx context.Context, number string, approvers []string) error
	UpdateApprovalProjection(ctx context.Context, number string, status domain.ApprovalStatus, at time.Time) error
}

// Ledger is the append-only decision store. Append must atomically reject a
// second decision for the same (ticket, approver) pair.
type Ledger interface {
	Append(ctx context.Context, decision *domain.ApprovalDecision) error
	ListByTicket(ctx context.Context, ticketNumber string) ([]domain.ApprovalDecision, error)
}

// Directory resolves the ordered approver list currently configured for a
// line of business. The engine consults it exactly once per ticket.
type Directory interface {
	ListApprovers(ctx context.Context, lineOfBusiness string) ([]string, error)
}

// Engine drives the sequential approval workflow: it freezes the approver
// snapshot, advances one decision at a time, and finalizes. All state is
// derived by replaying the ledger, never by trusting a stored counter.
type Engine struct {
	tickets    TicketStore
	ledger     Ledger
	directory  Directory
	dispatcher events.Dispatcher
	links      *auth.LinkTokenManager
	publicURL  string
	itMailbox  string
	logger     *zap.Logger
	locks      *ticketLocks
}

// Dependencies bundles collaborators for the engine.
type Dependencies struct {
	Tickets    TicketStore
	Ledger     Ledger
	Directory  Directory
	Dispatcher events.Dispatcher
	Links      *auth.LinkTokenManager
	PublicURL  string
	ITMailbox  string
	Logger     *zap.Logger
}

// NewEngine constructs the engine.
func NewEngine(deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tickets:    deps.Tickets,
		ledger:     deps.Ledger,
		directory:  deps.Directory,
		dispatcher: deps.Dispatcher,
		links:      deps.Links,
		publicURL:  strings.TrimRight(deps.PublicURL, "/"),
		itMailbox:  deps.ITMailbox,
		logger:     logger,
		locks:      newTicketLocks(),
	}
}

// CreateApprovalFlow freezes the approver list for a just-created ticket
// and starts the workflow. The snapshot is immutable for the ticket's
// lifetime; directory changes never retroactively alter an in-flight
// ticket's approval order.
//
// An empty directory entry finalizes the ticket Approved immediately:
// business units with no configured approvers do not block intake.
func (e *Engine) CreateApprovalFlow(ctx context.Context, ticketNumber, lineOfBusiness string) ([]string, error) {
	release := e.locks.acquire(ticketNumber)
	defer release()

	ticket, err := e.tickets.GetByNumber(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}
	if !ticket.Category.RequiresApproval() {
		return nil, apperrors.NewValidationError("ticket category does not require approval", nil)
	}

	approvers, err := e.directory.ListApprovers(ctx, lineOfBusiness)
	if err != nil {
		return nil, err
	}
	if err := e.tickets.SetApproverSnapshot(ctx, ticketNumber, approvers); err != nil {
		return nil, err
	}
	ticket.ApproverSnapshot = approvers

	if len(approvers) == 0 {
		if err := e.finalizeLocked(ctx, ticket, domain.ApprovalApproved, nil); err != nil {
			return nil, err
		}
		return approvers, nil
	}

	now := time.Now()
	if err := e.tickets.UpdateApprovalProjection(ctx, ticketNumber, domain.ApprovalPending, now); err != nil {
		return nil, err
	}

	e.publish(ctx, events.Event{
		Type:         events.EventApprovalHeadsUp,
		TicketNumber: ticketNumber,
		Recipients:   approvers,
		Payload: events.ApprovalHeadsUpPayload{
			FirstApprover: approvers[0],
			Approvers:     approvers,
		},
	})
	e.notifyTarget(ctx, ticket, 0, nil)
	return approvers, nil
}

// CurrentTarget returns the approver whose decision the workflow is
// waiting on.
func (e *Engine) CurrentTarget(ctx context.Context, ticketNumber string) (string, error) {
	ticket, err := e.tickets.GetByNumber(ctx, ticketNumber)
	if err != nil {
		return "", err
	}
	if !ticket.Category.RequiresApproval() {
		return "", apperrors.NewNotFound("approval target", map[string]any{"ticket_number": ticketNumber})
	}
	decisions, err := e.ledger.ListByTicket(ctx, ticketNumber)
	if err != nil {
		return "", err
	}
	state := ComputeState(ticket.ApproverSnapshot, decisions)
	if state.Terminal() {
		return "", apperrors.NewNotFound("approval target", map[string]any{"ticket_number": ticketNumber})
	}
	return ticket.ApproverSnapshot[state.Approvals], nil
}

// RecordDecision validates and appends one approver's decision, then either
// advances to the next approver or finalizes. The whole
// read-project-append-update sequence runs under the per-ticket lock, so
// two decisions racing for the same step are serialized: one wins the slot,
// the other fails its precondition. The ledger's uniqueness constraint
// backstops the duplicate check across processes.
//
// The caller's identity must already be proven equal to approverEmail by
// the authorization layer; the engine does not re-check sessions.
func (e *Engine) RecordDecision(ctx context.Context, ticketNumber, approverEmail string, action domain.DecisionAction, comment string) (domain.ApprovalState, error) {
	var state domain.ApprovalState

	comment = strings.TrimSpace(comment)
	if comment == "" {
		return state, apperrors.NewValidationError("a comment is required when responding to an approval", nil)
	}
	if !action.Valid() {
		return state, apperrors.NewValidationError("action must be approve or reject", nil)
	}

	release := e.locks.acquire(ticketNumber)
	defer release()

	ticket, err := e.tickets.GetByNumber(ctx, ticketNumber)
	if err != nil {
		return state, err
	}
	if !ticket.Category.RequiresApproval() {
		return state, apperrors.NewValidationError("ticket category does not require approval", nil)
	}

	decisions, err := e.ledger.ListByTicket(ctx, ticketNumber)
	if err != nil {
		return state, err
	}
	state = ComputeState(ticket.ApproverSnapshot, decisions)
	if hasDecisionFrom(decisions, approverEmail) {
		return state, apperrors.NewDuplicateDecision(ticketNumber, approverEmail)
	}
	if state.Terminal() {
		return state, apperrors.NewTerminalState(ticketNumber, state.Status())
	}
	target := ticket.ApproverSnapshot[state.Approvals]
	if !equalEmail(target, approverEmail) {
		return state, apperrors.NewForbidden(fmt.Sprintf("approval step %d is assigned to another approver", state.Approvals))
	}

	decision := &domain.ApprovalDecision{
		TicketNumber:  ticketNumber,
		ApproverEmail: strings.TrimSpace(approverEmail),
		Action:        action,
		Comment:       comment,
	}
	if err := e.ledger.Append(ctx, decision); err != nil {
		return state, err
	}
	decisions = append(decisions, *decision)
	state = ComputeState(ticket.ApproverSnapshot, decisions)

	// The cached projection is updated immediately so external reads see
	// the new state without replaying the ledger.
	if err := e.tickets.UpdateApprovalProjection(ctx, ticketNumber, state.Status(), time.Now()); err != nil {
		return state, err
	}

	e.publish(ctx, events.Event{
		Type:         events.EventDecisionRecorded,
		TicketNumber: ticketNumber,
		Actor:        decision.ApproverEmail,
		Payload: events.DecisionRecordedPayload{
			ApproverEmail: decision.ApproverEmail,
			Action:        action,
			Comment:       comment,
		},
	})

	switch state.Phase {
	case domain.PhaseDeclined, domain.PhaseApproved:
		if err := e.finalizeLocked(ctx, ticket, state.Status(), decisions); err != nil {
			return state, err
		}
	default:
		e.notifyTarget(ctx, ticket, state.Approvals, decisions)
	}
	return state, nil
}

// Finalize applies a terminal outcome. It is idempotent: repeating it for
// the same outcome neither double-sends the completion notification nor
// touches state again. A conflicting outcome against an already-closed
// workflow is rejected, never applied.
func (e *Engine) Finalize(ctx context.Context, ticketNumber string, outcome domain.ApprovalStatus) error {
	if outcome != domain.ApprovalApproved && outcome != domain.ApprovalDeclined {
		return apperrors.NewValidationError("finalize outcome must be Approved or Declined", nil)
	}
	release := e.locks.acquire(ticketNumber)
	defer release()

	ticket, err := e.tickets.GetByNumber(ctx, ticketNumber)
	if err != nil {
		return err
	}
	return e.finalizeLocked(ctx, ticket, outcome, nil)
}

// ResendPending re-dispatches the current target's notification for every
// in-flight workflow. Used by the admin reminder operation.
func (e *Engine) ResendPending(ctx context.Context) (int, error) {
	tickets, err := e.tickets.ListPendingApproval(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range tickets {
		if err := e.ResendFor(ctx, tickets[i].Number); err != nil {
			e.logger.Warn("resend failed", zap.String("ticket", tickets[i].Number), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// ResendFor re-sends the pending notification for one ticket.
func (e *Engine) ResendFor(ctx context.Context, ticketNumber string) error {
	release := e.locks.acquire(ticketNumber)
	defer release()

	ticket, err := e.tickets.GetByNumber(ctx, ticketNumber)
	if err != nil {
		return err
	}
	decisions, err := e.ledger.ListByTicket(ctx, ticketNumber)
	if err != nil {
		return err
	}
	state := ComputeState(ticket.ApproverSnapshot, decisions)
	if state.Terminal() || !ticket.Category.RequiresApproval() {
		return apperrors.NewValidationError("ticket has no pending approval", map[string]any{"ticket_number": ticketNumber})
	}
	e.notifyTarget(ctx, ticket, state.Approvals, decisions)
	return nil
}

// finalizeLocked assumes the caller holds the per-ticket lock. Terminal
// states are absorbing: repeating the same outcome is a no-op and a
// conflicting outcome can never rewrite one.
func (e *Engine) finalizeLocked(ctx context.Context, ticket *domain.Ticket, outcome domain.ApprovalStatus, decisions []domain.ApprovalDecision) error {
	if ticket.ApprovalStatus == outcome {
		return nil
	}
	if ticket.ApprovalStatus == domain.ApprovalApproved || ticket.ApprovalStatus == domain.ApprovalDeclined {
		return apperrors.NewTerminalState(ticket.Number, ticket.ApprovalStatus)
	}
	if err := e.tickets.UpdateApprovalProjection(ctx, ticket.Number, outcome, time.Now()); err != nil {
		return err
	}
	ticket.ApprovalStatus = outcome

	if decisions == nil {
		var err error
		decisions, err = e.ledger.ListByTicket(ctx, ticket.Number)
		if err != nil {
			e.logger.Warn("finalize: ledger read-back failed", zap.String("ticket", ticket.Number), zap.Error(err))
		}
	}
	declineComment := ""
	if outcome == domain.ApprovalDeclined {
		for i := len(decisions) - 1; i >= 0; i-- {
			if decisions[i].Action == domain.ActionReject {
				declineComment = decisions[i].Comment
				break
			}
		}
	}

	recipients := []string{ticket.Email}
	if e.itMailbox != "" {
		recipients = append(recipients, e.itMailbox)
	}
	e.publish(ctx, events.Event{
		Type:         events.EventWorkflowFinalized,
		TicketNumber: ticket.Number,
		Recipients:   recipients,
		Payload: events.WorkflowFinalizedPayload{
			Outcome:        outcome,
			DeclineComment: declineComment,
			History:        decisions,
		},
	})
	return nil
}

// notifyTarget dispatches exactly one approval request to the approver at
// the given step. Dispatch is best-effort: a failure is logged and never
// unwinds a persisted decision.
func (e *Engine) notifyTarget(ctx context.Context, ticket *domain.Ticket, step int, history []domain.ApprovalDecision) {
	if step < 0 || step >= len(ticket.ApproverSnapshot) {
		return
	}
	target := ticket.ApproverSnapshot[step]
	e.publish(ctx, events.Event{
		Type:         events.EventApprovalRequested,
		TicketNumber: ticket.Number,
		Recipients:   []string{target},
		Payload: events.ApprovalRequestedPayload{
			ApproverEmail: target,
			StepIndex:     step,
			SnapshotSize:  len(ticket.ApproverSnapshot),
			ApproveLink:   e.decisionLink(ticket.Number, target, domain.ActionApprove),
			RejectLink:    e.decisionLink(ticket.Number, target, domain.ActionReject),
			History:       history,
		},
	})
}

// decisionLink builds the token-bound URL an approver uses to respond.
func (e *Engine) decisionLink(ticketNumber, approverEmail string, action domain.DecisionAction) string {
	if e.links == nil || e.publicURL == "" {
		return ""
	}
	token, err := e.links.Generate(ticketNumber, approverEmail, action)
	if err != nil {
		e.logger.Warn("link token generation failed", zap.String("ticket", ticketNumber), zap.Error(err))
		return ""
	}
	return fmt.Sprintf("%s/tickets/%s/decision?action=%s&link=%s",
		e.publicURL, url.PathEscape(ticketNumber), action, url.QueryEscape(token))
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := e.dispatcher.Publish(ctx, event); err != nil {
		e.logger.Warn("event dispatch failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func equalEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
