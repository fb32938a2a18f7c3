package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
)

// NotificationService renders and delivers workflow email. Delivery is a
// logged stub pending SMTP integration; the rendering contract is real.
type NotificationService struct {
	emailFrom string
	logger    *zap.Logger
}

// NewNotificationService instantiates the service.
func NewNotificationService(emailFrom string, logger *zap.Logger) *NotificationService {
	return &NotificationService{emailFrom: emailFrom, logger: logger}
}

// HandleTicketCreated acknowledges intake to the requester.
func (s *NotificationService) HandleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	subject := fmt.Sprintf("Ticket %s received (%s)", event.TicketNumber, payload.Category)
	return s.send(event.Recipients, subject, map[string]any{
		"ticket":   event.TicketNumber,
		"category": payload.Category,
		"priority": payload.Priority,
	})
}

// HandleApprovalRequested emails the single approver whose turn it is,
// including the signed approve and reject links.
func (s *NotificationService) HandleApprovalRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApprovalRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	subject := fmt.Sprintf("Action required: approval %d of %d for %s",
		payload.StepIndex+1, payload.SnapshotSize, event.TicketNumber)
	return s.send([]string{payload.ApproverEmail}, subject, map[string]any{
		"ticket":       event.TicketNumber,
		"approve_link": payload.ApproveLink,
		"reject_link":  payload.RejectLink,
	})
}

// HandleApprovalHeadsUp broadcasts the one-time notice to the full chain.
func (s *NotificationService) HandleApprovalHeadsUp(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApprovalHeadsUpPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	subject := fmt.Sprintf("Ticket %s entered approval", event.TicketNumber)
	return s.send(event.Recipients, subject, map[string]any{
		"ticket":         event.TicketNumber,
		"first_approver": payload.FirstApprover,
	})
}

// HandleWorkflowFinalized tells the requester and the IT mailbox how the
// workflow ended.
func (s *NotificationService) HandleWorkflowFinalized(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.WorkflowFinalizedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	subject := fmt.Sprintf("Ticket %s approval outcome: %s", event.TicketNumber, payload.Outcome)
	body := map[string]any{
		"ticket":  event.TicketNumber,
		"outcome": payload.Outcome,
	}
	if payload.Outcome == domain.ApprovalDeclined && payload.DeclineComment != "" {
		body["decline_comment"] = payload.DeclineComment
	}
	return s.send(event.Recipients, subject, body)
}

// HandleTicketStatusChanged notifies the requester of lifecycle changes.
func (s *NotificationService) HandleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	subject := fmt.Sprintf("Ticket %s is now %s", event.TicketNumber, payload.NewStatus)
	return s.send(event.Recipients, subject, map[string]any{
		"ticket":     event.TicketNumber,
		"old_status": payload.OldStatus,
		"new_status": payload.NewStatus,
		"comment":    payload.Comment,
	})
}

// HandleTempPasswordIssued delivers a reset credential to its owner only.
func (s *NotificationService) HandleTempPasswordIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TempPasswordIssuedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	// The temp password itself stays out of the logs.
	return s.send(event.Recipients, "Your temporary password", map[string]any{
		"username": payload.Username,
	})
}

func (s *NotificationService) send(recipients []string, subject string, fields map[string]any) error {
	s.logger.Info("email queued",
		zap.String("from", s.emailFrom),
		zap.Strings("to", recipients),
		zap.String("subject", subject),
		zap.Any("fields", fields),
	)
	return nil
}
