package workflow

import "github.com/helpdesk-ops/approval-service/internal/domain"

// ComputeState derives the workflow state from the frozen approver snapshot
// and the decisions recorded for one ticket. It is a pure function:
// replaying the same ledger against the same snapshot always yields the
// same state, which is what makes the ledger, not any cached counter, the
// source of truth.
//
// Any reject decision is terminal. Otherwise the state is Pending(k) with
// k approve decisions, reaching Approved when k covers the whole snapshot.
// An empty snapshot is therefore Approved immediately.
func ComputeState(snapshot []string, decisions []domain.ApprovalDecision) domain.ApprovalState {
	approvals := 0
	for _, d := range decisions {
		if d.Action == domain.ActionReject {
			return domain.ApprovalState{Phase: domain.PhaseDeclined, Approvals: approvals}
		}
		if d.Action == domain.ActionApprove {
			approvals++
		}
	}
	if approvals >= len(snapshot) {
		return domain.ApprovalState{Phase: domain.PhaseApproved, Approvals: approvals}
	}
	return domain.ApprovalState{Phase: domain.PhasePending, Approvals: approvals}
}

// hasDecisionFrom reports whether the approver already has a ledger row for
// this ticket. Matching is trimmed and case-insensitive, the same rule the
// ledger's uniqueness index applies.
func hasDecisionFrom(decisions []domain.ApprovalDecision, approverEmail string) bool {
	for _, d := range decisions {
		if equalEmail(d.ApproverEmail, approverEmail) {
			return true
		}
	}
	return false
}
