package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	"github.com/helpdesk-ops/approval-service/internal/events"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTickets(tickets ...*domain.Ticket) *fakeTickets {
	f := &fakeTickets{tickets: make(map[string]*domain.Ticket)}
	for _, t := range tickets {
		clone := *t
		f.tickets[t.Number] = &clone
	}
	return f
}

func (f *fakeTickets) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[number]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"number": number})
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTickets) ListPendingApproval(_ context.Context) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.ApprovalStatus == domain.ApprovalPending {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTickets) SetApproverSnapshot(_ context.Context, number string, approvers []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[number]
	if !ok {
		return apperrors.NewNotFound("ticket", nil)
	}
	if len(t.ApproverSnapshot) == 0 {
		t.ApproverSnapshot = append([]string(nil), approvers...)
	}
	return nil
}

func (f *fakeTickets) UpdateApprovalProjection(_ context.Context, number string, status domain.ApprovalStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[number]
	if !ok {
		return apperrors.NewNotFound("ticket", nil)
	}
	t.ApprovalStatus = status
	t.ApprovalUpdatedAt = &at
	return nil
}

type fakeLedger struct {
	mu        sync.Mutex
	decisions map[string][]domain.ApprovalDecision
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{decisions: make(map[string][]domain.ApprovalDecision)}
}

func (f *fakeLedger) Append(_ context.Context, decision *domain.ApprovalDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.decisions[decision.TicketNumber] {
		if strings.EqualFold(existing.ApproverEmail, decision.ApproverEmail) {
			return apperrors.NewDuplicateDecision(decision.TicketNumber, decision.ApproverEmail)
		}
	}
	decision.DecidedAt = time.Now()
	f.decisions[decision.TicketNumber] = append(f.decisions[decision.TicketNumber], *decision)
	return nil
}

func (f *fakeLedger) ListByTicket(_ context.Context, ticketNumber string) ([]domain.ApprovalDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ApprovalDecision(nil), f.decisions[ticketNumber]...), nil
}

type fakeDirectory struct {
	chains map[string][]string
}

func (f *fakeDirectory) ListApprovers(_ context.Context, lob string) ([]string, error) {
	return f.chains[lob], nil
}

type capturingDispatcher struct {
	mu     sync.Mutex
	err    error
	events []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func serviceTicket(number string) *domain.Ticket {
	return &domain.Ticket{
		Number:         number,
		Email:          "requester@corp.com",
		LineOfBusiness: "Finance",
		Category:       domain.CategoryServiceRequest,
		Status:         domain.TicketStatusOpen,
		ApprovalStatus: domain.ApprovalPending,
	}
}

func newTestEngine(tickets *fakeTickets, ledger *fakeLedger, chains map[string][]string) (*Engine, *capturingDispatcher) {
	dispatcher := &capturingDispatcher{}
	engine := NewEngine(Dependencies{
		Tickets:    tickets,
		Ledger:     ledger,
		Directory:  &fakeDirectory{chains: chains},
		Dispatcher: dispatcher,
		ITMailbox:  "itsupport@corp.com",
	})
	return engine, dispatcher
}

func TestCreateApprovalFlowFreezesSnapshotAndNotifiesFirst(t *testing.T) {
	tickets := newFakeTickets(serviceTicket("ITID000001"))
	engine, dispatcher := newTestEngine(tickets, newFakeLedger(), map[string][]string{
		"Finance": {"a@corp.com", "b@corp.com"},
	})

	snapshot, err := engine.CreateApprovalFlow(context.Background(), "ITID000001", "Finance")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@corp.com", "b@corp.com"}, snapshot)

	requested := dispatcher.ofType(events.EventApprovalRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, []string{"a@corp.com"}, requested[0].Recipients)

	headsUp := dispatcher.ofType(events.EventApprovalHeadsUp)
	require.Len(t, headsUp, 1)
	assert.ElementsMatch(t, snapshot, headsUp[0].Recipients)

	stored, err := tickets.GetByNumber(context.Background(), "ITID000001")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, stored.ApprovalStatus)
}

func TestCreateApprovalFlowEmptyChainApprovesImmediately(t *testing.T) {
	tickets := newFakeTickets(serviceTicket("ITID000002"))
	engine, dispatcher := newTestEngine(tickets, newFakeLedger(), map[string][]string{})

	snapshot, err := engine.CreateApprovalFlow(context.Background(), "ITID000002", "Finance")
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	stored, err := tickets.GetByNumber(context.Background(), "ITID000002")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, stored.ApprovalStatus)
	assert.Len(t, dispatcher.ofType(events.EventWorkflowFinalized), 1)
	assert.Empty(t, dispatcher.ofType(events.EventApprovalRequested))
}

func TestCreateApprovalFlowRejectsNonApprovalCategory(t *testing.T) {
	ticket := serviceTicket("ITID000003")
	ticket.Category = domain.CategoryIncident
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)

	_, err := engine.CreateApprovalFlow(context.Background(), "ITID000003", "Finance")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestRecordDecisionFullChainApproves(t *testing.T) {
	ticket := serviceTicket("ITID000010")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com", "c@corp.com"}
	tickets := newFakeTickets(ticket)
	engine, dispatcher := newTestEngine(tickets, newFakeLedger(), nil)
	ctx := context.Background()

	for _, approver := range []string{"a@corp.com", "b@corp.com"} {
		state, err := engine.RecordDecision(ctx, "ITID000010", approver, domain.ActionApprove, "looks fine")
		require.NoError(t, err)
		assert.Equal(t, domain.PhasePending, state.Phase)
	}
	state, err := engine.RecordDecision(ctx, "ITID000010", "c@corp.com", domain.ActionApprove, "final sign-off")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseApproved, state.Phase)

	stored, err := tickets.GetByNumber(ctx, "ITID000010")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, stored.ApprovalStatus)

	finalized := dispatcher.ofType(events.EventWorkflowFinalized)
	require.Len(t, finalized, 1)
	assert.Contains(t, finalized[0].Recipients, "requester@corp.com")
	assert.Contains(t, finalized[0].Recipients, "itsupport@corp.com")

	// Each pending step after the first notified exactly its own target.
	requested := dispatcher.ofType(events.EventApprovalRequested)
	require.Len(t, requested, 2)
	assert.Equal(t, []string{"b@corp.com"}, requested[0].Recipients)
	assert.Equal(t, []string{"c@corp.com"}, requested[1].Recipients)
}

func TestRecordDecisionRejectDeclinesWithComment(t *testing.T) {
	ticket := serviceTicket("ITID000011")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	tickets := newFakeTickets(ticket)
	engine, dispatcher := newTestEngine(tickets, newFakeLedger(), nil)
	ctx := context.Background()

	_, err := engine.RecordDecision(ctx, "ITID000011", "a@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	state, err := engine.RecordDecision(ctx, "ITID000011", "b@corp.com", domain.ActionReject, "budget exceeded")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseDeclined, state.Phase)

	stored, err := tickets.GetByNumber(ctx, "ITID000011")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalDeclined, stored.ApprovalStatus)

	finalized := dispatcher.ofType(events.EventWorkflowFinalized)
	require.Len(t, finalized, 1)
	payload, ok := finalized[0].Payload.(events.WorkflowFinalizedPayload)
	require.True(t, ok)
	assert.Equal(t, "budget exceeded", payload.DeclineComment)
}

func TestRecordDecisionRequiresComment(t *testing.T) {
	ticket := serviceTicket("ITID000012")
	ticket.ApproverSnapshot = []string{"a@corp.com"}
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)

	_, err := engine.RecordDecision(context.Background(), "ITID000012", "a@corp.com", domain.ActionApprove, "   ")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestRecordDecisionOutOfTurnIsForbidden(t *testing.T) {
	ticket := serviceTicket("ITID000013")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)

	_, err := engine.RecordDecision(context.Background(), "ITID000013", "b@corp.com", domain.ActionApprove, "jumping the queue")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestRecordDecisionDuplicateIsRejected(t *testing.T) {
	ticket := serviceTicket("ITID000014")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)
	ctx := context.Background()

	_, err := engine.RecordDecision(ctx, "ITID000014", "a@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	_, err = engine.RecordDecision(ctx, "ITID000014", "A@Corp.COM", domain.ActionApprove, "again")
	assert.True(t, apperrors.IsCode(err, "DUPLICATE_DECISION"))
}

func TestRecordDecisionAfterTerminalIsRejected(t *testing.T) {
	ticket := serviceTicket("ITID000015")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)
	ctx := context.Background()

	_, err := engine.RecordDecision(ctx, "ITID000015", "a@corp.com", domain.ActionReject, "no")
	require.NoError(t, err)
	_, err = engine.RecordDecision(ctx, "ITID000015", "b@corp.com", domain.ActionApprove, "yes")
	assert.True(t, apperrors.IsCode(err, "TERMINAL_STATE"))
}

func TestRecordDecisionUnknownTicket(t *testing.T) {
	engine, _ := newTestEngine(newFakeTickets(), newFakeLedger(), nil)
	_, err := engine.RecordDecision(context.Background(), "ITID999999", "a@corp.com", domain.ActionApprove, "ok")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestRecordDecisionConcurrentSameStepOneWins(t *testing.T) {
	ticket := serviceTicket("ITID000016")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	ledger := newFakeLedger()
	engine, _ := newTestEngine(newFakeTickets(ticket), ledger, nil)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.RecordDecision(context.Background(), "ITID000016", "a@corp.com", domain.ActionApprove, "concurrent")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, apperrors.IsCode(err, "DUPLICATE_DECISION"), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)

	decisions, err := ledger.ListByTicket(context.Background(), "ITID000016")
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	ticket := serviceTicket("ITID000017")
	ticket.ApproverSnapshot = []string{"a@corp.com"}
	tickets := newFakeTickets(ticket)
	engine, dispatcher := newTestEngine(tickets, newFakeLedger(), nil)
	ctx := context.Background()

	_, err := engine.RecordDecision(ctx, "ITID000017", "a@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	require.Len(t, dispatcher.ofType(events.EventWorkflowFinalized), 1)

	require.NoError(t, engine.Finalize(ctx, "ITID000017", domain.ApprovalApproved))
	require.NoError(t, engine.Finalize(ctx, "ITID000017", domain.ApprovalApproved))
	assert.Len(t, dispatcher.ofType(events.EventWorkflowFinalized), 1)
}

func TestFinalizeCannotOverturnTerminalOutcome(t *testing.T) {
	ticket := serviceTicket("ITID000022")
	ticket.ApproverSnapshot = []string{"a@corp.com"}
	tickets := newFakeTickets(ticket)
	engine, dispatcher := newTestEngine(tickets, newFakeLedger(), nil)
	ctx := context.Background()

	_, err := engine.RecordDecision(ctx, "ITID000022", "a@corp.com", domain.ActionReject, "no budget")
	require.NoError(t, err)

	err = engine.Finalize(ctx, "ITID000022", domain.ApprovalApproved)
	assert.True(t, apperrors.IsCode(err, "TERMINAL_STATE"))

	stored, err := tickets.GetByNumber(ctx, "ITID000022")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalDeclined, stored.ApprovalStatus)
	assert.Len(t, dispatcher.ofType(events.EventWorkflowFinalized), 1)
}

func TestRecordDecisionReplayAfterDeclineIsDuplicate(t *testing.T) {
	ticket := serviceTicket("ITID000023")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com", "c@corp.com"}
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)
	ctx := context.Background()

	_, err := engine.RecordDecision(ctx, "ITID000023", "a@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	_, err = engine.RecordDecision(ctx, "ITID000023", "b@corp.com", domain.ActionReject, "not approved")
	require.NoError(t, err)

	// Replaying an already-recorded decision reports the duplicate, even
	// though the workflow has since closed. An approver who never decided
	// still sees the terminal error.
	_, err = engine.RecordDecision(ctx, "ITID000023", "a@corp.com", domain.ActionApprove, "ok")
	assert.True(t, apperrors.IsCode(err, "DUPLICATE_DECISION"))
	_, err = engine.RecordDecision(ctx, "ITID000023", "c@corp.com", domain.ActionApprove, "ok")
	assert.True(t, apperrors.IsCode(err, "TERMINAL_STATE"))
}

func TestRecordDecisionSurvivesDispatchFailure(t *testing.T) {
	ticket := serviceTicket("ITID000024")
	ticket.ApproverSnapshot = []string{"a@corp.com"}
	tickets := newFakeTickets(ticket)
	ledger := newFakeLedger()
	engine, dispatcher := newTestEngine(tickets, ledger, nil)
	dispatcher.err = errors.New("smtp relay down")
	ctx := context.Background()

	state, err := engine.RecordDecision(ctx, "ITID000024", "a@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseApproved, state.Phase)

	decisions, err := ledger.ListByTicket(ctx, "ITID000024")
	require.NoError(t, err)
	assert.Len(t, decisions, 1)

	stored, err := tickets.GetByNumber(ctx, "ITID000024")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, stored.ApprovalStatus)
}

func TestCurrentTarget(t *testing.T) {
	ticket := serviceTicket("ITID000018")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	engine, _ := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)
	ctx := context.Background()

	target, err := engine.CurrentTarget(ctx, "ITID000018")
	require.NoError(t, err)
	assert.Equal(t, "a@corp.com", target)

	_, err = engine.RecordDecision(ctx, "ITID000018", "a@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	target, err = engine.CurrentTarget(ctx, "ITID000018")
	require.NoError(t, err)
	assert.Equal(t, "b@corp.com", target)

	_, err = engine.RecordDecision(ctx, "ITID000018", "b@corp.com", domain.ActionApprove, "ok")
	require.NoError(t, err)
	_, err = engine.CurrentTarget(ctx, "ITID000018")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestResendForPendingTicketRenotifiesTarget(t *testing.T) {
	ticket := serviceTicket("ITID000019")
	ticket.ApproverSnapshot = []string{"a@corp.com", "b@corp.com"}
	engine, dispatcher := newTestEngine(newFakeTickets(ticket), newFakeLedger(), nil)
	ctx := context.Background()

	require.NoError(t, engine.ResendFor(ctx, "ITID000019"))
	requested := dispatcher.ofType(events.EventApprovalRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, []string{"a@corp.com"}, requested[0].Recipients)
}

func TestResendPendingCountsInFlightOnly(t *testing.T) {
	pending := serviceTicket("ITID000020")
	pending.ApproverSnapshot = []string{"a@corp.com"}
	done := serviceTicket("ITID000021")
	done.ApproverSnapshot = []string{"a@corp.com"}
	done.ApprovalStatus = domain.ApprovalApproved

	engine, _ := newTestEngine(newFakeTickets(pending, done), newFakeLedger(), nil)
	sent, err := engine.ResendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}
