package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

func decision(approver string, action domain.DecisionAction) domain.ApprovalDecision {
	return domain.ApprovalDecision{ApproverEmail: approver, Action: action, Comment: "ok"}
}

func TestComputeStateEmptySnapshotIsApproved(t *testing.T) {
	state := ComputeState(nil, nil)
	assert.Equal(t, domain.PhaseApproved, state.Phase)
	assert.True(t, state.Terminal())
	assert.Equal(t, domain.ApprovalApproved, state.Status())
}

func TestComputeStateNoDecisionsIsPendingAtZero(t *testing.T) {
	state := ComputeState([]string{"a@x.com", "b@x.com"}, nil)
	assert.Equal(t, domain.PhasePending, state.Phase)
	assert.Equal(t, 0, state.Approvals)
	assert.False(t, state.Terminal())
}

func TestComputeStateAdvancesPerApproval(t *testing.T) {
	snapshot := []string{"a@x.com", "b@x.com", "c@x.com"}

	state := ComputeState(snapshot, []domain.ApprovalDecision{
		decision("a@x.com", domain.ActionApprove),
	})
	assert.Equal(t, domain.PhasePending, state.Phase)
	assert.Equal(t, 1, state.Approvals)

	state = ComputeState(snapshot, []domain.ApprovalDecision{
		decision("a@x.com", domain.ActionApprove),
		decision("b@x.com", domain.ActionApprove),
		decision("c@x.com", domain.ActionApprove),
	})
	assert.Equal(t, domain.PhaseApproved, state.Phase)
	assert.Equal(t, 3, state.Approvals)
}

func TestComputeStateRejectIsTerminal(t *testing.T) {
	snapshot := []string{"a@x.com", "b@x.com", "c@x.com"}
	state := ComputeState(snapshot, []domain.ApprovalDecision{
		decision("a@x.com", domain.ActionApprove),
		decision("b@x.com", domain.ActionReject),
	})
	assert.Equal(t, domain.PhaseDeclined, state.Phase)
	assert.Equal(t, 1, state.Approvals)
	assert.True(t, state.Terminal())
	assert.Equal(t, domain.ApprovalDeclined, state.Status())
}

func TestComputeStateIsDeterministic(t *testing.T) {
	snapshot := []string{"a@x.com", "b@x.com"}
	ledger := []domain.ApprovalDecision{
		decision("a@x.com", domain.ActionApprove),
		decision("b@x.com", domain.ActionReject),
	}
	first := ComputeState(snapshot, ledger)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeState(snapshot, ledger))
	}
}

func TestHasDecisionFromIsCaseInsensitive(t *testing.T) {
	ledger := []domain.ApprovalDecision{decision("Alice@X.com", domain.ActionApprove)}
	assert.True(t, hasDecisionFrom(ledger, "alice@x.com"))
	assert.True(t, hasDecisionFrom(ledger, "  ALICE@x.COM "))
	assert.False(t, hasDecisionFrom(ledger, "bob@x.com"))
}
