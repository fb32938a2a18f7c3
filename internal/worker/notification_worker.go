package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	"github.com/helpdesk-ops/approval-service/internal/repository"
	"github.com/helpdesk-ops/approval-service/internal/service"
)

// RegisterNotificationHandlers wires the notification service onto the
// dispatcher. Handlers run synchronously with the publishing call; their
// failures are logged by the dispatcher path and never fail the operation
// that emitted the event.
func RegisterNotificationHandlers(dispatcher events.Dispatcher, notifications *service.NotificationService) {
	dispatcher.Subscribe(events.EventTicketCreated, notifications.HandleTicketCreated)
	dispatcher.Subscribe(events.EventApprovalRequested, notifications.HandleApprovalRequested)
	dispatcher.Subscribe(events.EventApprovalHeadsUp, notifications.HandleApprovalHeadsUp)
	dispatcher.Subscribe(events.EventWorkflowFinalized, notifications.HandleWorkflowFinalized)
	dispatcher.Subscribe(events.EventTicketStatusChanged, notifications.HandleTicketStatusChanged)
	dispatcher.Subscribe(events.EventTempPasswordIssued, notifications.HandleTempPasswordIssued)
}

// RegisterAuditHandlers records workflow decisions and outcomes in the
// audit log as a side channel, decoupled from the engine's transaction.
func RegisterAuditHandlers(dispatcher events.Dispatcher, audits repository.AuditLogRepository, logger *zap.Logger) {
	record := func(ctx context.Context, entry *domain.AuditEntry) {
		entry.CreatedAt = time.Now()
		if err := audits.Append(ctx, entry); err != nil {
			logger.Warn("audit append failed", zap.String("action", entry.Action), zap.Error(err))
		}
	}

	dispatcher.Subscribe(events.EventDecisionRecorded, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.DecisionRecordedPayload)
		if !ok {
			return nil
		}
		record(ctx, &domain.AuditEntry{
			TicketNumber: event.TicketNumber,
			Action:       "decision_" + string(payload.Action),
			PerformedBy:  payload.ApproverEmail,
			Remarks:      payload.Comment,
		})
		return nil
	})

	dispatcher.Subscribe(events.EventWorkflowFinalized, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.WorkflowFinalizedPayload)
		if !ok {
			return nil
		}
		record(ctx, &domain.AuditEntry{
			TicketNumber: event.TicketNumber,
			Action:       "workflow_finalized",
			Details:      string(payload.Outcome),
		})
		return nil
	})
}
