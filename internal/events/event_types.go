package events

import (
	"time"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventApprovalRequested   EventType = "approval_requested"
	EventApprovalHeadsUp     EventType = "approval_heads_up"
	EventDecisionRecorded    EventType = "decision_recorded"
	EventWorkflowFinalized   EventType = "workflow_finalized"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTempPasswordIssued  EventType = "temp_password_issued"
)

// Event represents a domain event emitted by the engine and services.
// Payload carries template data only; rendering is the dispatcher
// consumer's problem.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TicketNumber string    `json:"ticket_number,omitempty"`
	Recipients   []string  `json:"recipients,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category       domain.TicketCategory `json:"category"`
	Priority       domain.TicketPriority `json:"priority"`
	LineOfBusiness string                `json:"line_of_business"`
	EmployeeName   string                `json:"employee_name"`
	RequesterEmail string                `json:"requester_email"`
}

// ApprovalRequestedPayload targets exactly one approver per advancing step.
type ApprovalRequestedPayload struct {
	ApproverEmail string                    `json:"approver_email"`
	StepIndex     int                       `json:"step_index"`
	SnapshotSize  int                       `json:"snapshot_size"`
	ApproveLink   string                    `json:"approve_link,omitempty"`
	RejectLink    string                    `json:"reject_link,omitempty"`
	History       []domain.ApprovalDecision `json:"history,omitempty"`
}

// ApprovalHeadsUpPayload is the one-time broadcast to the full snapshot.
type ApprovalHeadsUpPayload struct {
	FirstApprover string   `json:"first_approver"`
	Approvers     []string `json:"approvers"`
}

// DecisionRecordedPayload payload.
type DecisionRecordedPayload struct {
	ApproverEmail string                `json:"approver_email"`
	Action        domain.DecisionAction `json:"action"`
	Comment       string                `json:"comment"`
}

// WorkflowFinalizedPayload payload.
type WorkflowFinalizedPayload struct {
	Outcome        domain.ApprovalStatus     `json:"outcome"`
	DeclineComment string                    `json:"decline_comment,omitempty"`
	History        []domain.ApprovalDecision `json:"history,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TempPasswordIssuedPayload payload.
type TempPasswordIssuedPayload struct {
	Username     string `json:"username"`
	TempPassword string `json:"temp_password"`
}
