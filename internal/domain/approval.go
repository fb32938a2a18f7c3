package domain

import "time"

// DecisionAction is what an approver did.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// Valid reports whether the action is a member of the closed set.
func (a DecisionAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// ApprovalDecision is one row of the append-only approval ledger. At most one
// decision may exist per (ticket, approver) pair; the ledger enforces this.
type ApprovalDecision struct {
	TicketNumber  string         `json:"ticket_number"`
	ApproverEmail string         `json:"approver_email"`
	Action        DecisionAction `json:"action"`
	Comment       string         `json:"comment"`
	DecidedAt     time.Time      `json:"decided_at"`
}

// ApprovalStatus is the cached projection stored on the ticket record for
// fast external reads.
type ApprovalStatus string

const (
	ApprovalNotApplicable ApprovalStatus = "N/A"
	ApprovalPending       ApprovalStatus = "Pending Approval"
	ApprovalApproved      ApprovalStatus = "Approved"
	ApprovalDeclined      ApprovalStatus = "Declined"
)

// ApprovalPhase is the coarse state of a workflow.
type ApprovalPhase string

const (
	PhaseNotApplicable ApprovalPhase = "not_applicable"
	PhasePending       ApprovalPhase = "pending"
	PhaseApproved      ApprovalPhase = "approved"
	PhaseDeclined      ApprovalPhase = "declined"
)

// ApprovalState is the derived workflow state: the phase plus the number of
// approve decisions recorded so far. It is never stored; it is recomputed
// from the snapshot and the ledger.
type ApprovalState struct {
	Phase     ApprovalPhase
	Approvals int
}

// Terminal reports whether no further decisions may alter the workflow.
func (s ApprovalState) Terminal() bool {
	return s.Phase == PhaseApproved || s.Phase == PhaseDeclined
}

// Status maps the derived state onto the cached ticket projection.
func (s ApprovalState) Status() ApprovalStatus {
	switch s.Phase {
	case PhaseApproved:
		return ApprovalApproved
	case PhaseDeclined:
		return ApprovalDeclined
	case PhasePending:
		return ApprovalPending
	default:
		return ApprovalNotApplicable
	}
}
