package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-ops/approval-service/internal/domain"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// ApprovalRepository is the append-only decision ledger. Rows are never
// updated or deleted for a live ticket; the unique index on
// (ticket_number, approver_email) makes Append atomically reject a second
// decision from the same approver.
type ApprovalRepository interface {
	Append(ctx context.Context, decision *domain.ApprovalDecision) error
	ListByTicket(ctx context.Context, ticketNumber string) ([]domain.ApprovalDecision, error)
	ListAll(ctx context.Context) ([]domain.ApprovalDecision, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository instantiates the ledger.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

func (r *approvalRepository) Append(ctx context.Context, decision *domain.ApprovalDecision) error {
	const query = `
        INSERT INTO approvals (ticket_number, approver_email, action, comment)
        VALUES ($1,$2,$3,$4)
        RETURNING decided_at`
	err := r.pool.QueryRow(ctx, query,
		decision.TicketNumber,
		strings.TrimSpace(decision.ApproverEmail),
		decision.Action,
		decision.Comment,
	).Scan(&decision.DecidedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.NewDuplicateDecision(decision.TicketNumber, decision.ApproverEmail)
		}
		return err
	}
	return nil
}

func (r *approvalRepository) ListByTicket(ctx context.Context, ticketNumber string) ([]domain.ApprovalDecision, error) {
	const query = `
        SELECT ticket_number, approver_email, action, comment, decided_at
        FROM approvals WHERE ticket_number=$1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, ticketNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalDecision
	for rows.Next() {
		var d domain.ApprovalDecision
		if err := rows.Scan(&d.TicketNumber, &d.ApproverEmail, &d.Action, &d.Comment, &d.DecidedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *approvalRepository) ListAll(ctx context.Context) ([]domain.ApprovalDecision, error) {
	const query = `
        SELECT ticket_number, approver_email, action, comment, decided_at
        FROM approvals ORDER BY ticket_number, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalDecision
	for rows.Next() {
		var d domain.ApprovalDecision
		if err := rows.Scan(&d.TicketNumber, &d.ApproverEmail, &d.Action, &d.Comment, &d.DecidedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
