package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// TicketFilter captures admin search parameters.
type TicketFilter struct {
	EmployeeID     *string
	Email          *string
	Categories     []domain.TicketCategory
	Statuses       []domain.TicketStatus
	ApprovalStatus *domain.ApprovalStatus
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// StatusUpdate carries the fields IT may change on a ticket.
type StatusUpdate struct {
	Status     domain.TicketStatus
	ITInCharge string
	Resolution string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	NextNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListPendingApproval(ctx context.Context) ([]domain.Ticket, error)
	SetApproverSnapshot(ctx context.Context, number string, approvers []string) error
	UpdateApprovalProjection(ctx context.Context, number string, status domain.ApprovalStatus, at time.Time) error
	UpdateStatusFields(ctx context.Context, number string, update StatusUpdate) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// NextNumber assigns the next format-stable ticket number from the
// database sequence, so concurrent intakes never collide.
func (r *ticketRepository) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('ticket_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("ITID%06d", n), nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, employee_id, employee_name, line_of_business, office_site, email,
            category, priority, request_type, description, additional_details, status,
            approval_status, approval_updated_at, approver_snapshot, remarks)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Number,
		ticket.EmployeeID,
		ticket.EmployeeName,
		ticket.LineOfBusiness,
		ticket.OfficeSite,
		ticket.Email,
		ticket.Category,
		ticket.Priority,
		ticket.RequestType,
		ticket.Description,
		ticket.AdditionalDetails,
		ticket.Status,
		ticket.ApprovalStatus,
		ticket.ApprovalUpdatedAt,
		ticket.ApproverSnapshot,
		ticket.Remarks,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

const ticketColumns = `number, employee_id, employee_name, line_of_business, office_site, email,
        category, priority, request_type, description, additional_details, status,
        it_in_charge, resolution, approval_status, approval_updated_at, approver_snapshot,
        remarks, created_at, updated_at`

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE number=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, number).Scan(scanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.EmployeeID != nil {
		args = append(args, strings.ToUpper(strings.TrimSpace(*filter.EmployeeID)))
		clauses = append(clauses, fmt.Sprintf("UPPER(employee_id)=$%d", len(args)))
	}
	if filter.Email != nil {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.Email)))
		clauses = append(clauses, fmt.Sprintf("LOWER(email)=$%d", len(args)))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ApprovalStatus != nil {
		args = append(args, *filter.ApprovalStatus)
		clauses = append(clauses, fmt.Sprintf("approval_status=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListPendingApproval(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE approval_status=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, domain.ApprovalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// SetApproverSnapshot writes the frozen approver list. It only succeeds
// while the snapshot is still empty; a second write is a silent no-op so
// the list captured at creation can never be replaced.
func (r *ticketRepository) SetApproverSnapshot(ctx context.Context, number string, approvers []string) error {
	const query = `
        UPDATE tickets SET approver_snapshot=$1, updated_at=NOW()
        WHERE number=$2 AND approver_snapshot='{}'`
	_, err := r.pool.Exec(ctx, query, approvers, number)
	return err
}

func (r *ticketRepository) UpdateApprovalProjection(ctx context.Context, number string, status domain.ApprovalStatus, at time.Time) error {
	const query = `
        UPDATE tickets SET approval_status=$1, approval_updated_at=$2, updated_at=NOW()
        WHERE number=$3`
	cmd, err := r.pool.Exec(ctx, query, status, at, number)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateStatusFields(ctx context.Context, number string, update StatusUpdate) error {
	const query = `
        UPDATE tickets SET status=$1, it_in_charge=$2, resolution=$3, updated_at=NOW()
        WHERE number=$4`
	cmd, err := r.pool.Exec(ctx, query, update.Status, update.ITInCharge, update.Resolution, number)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTargets(t *domain.Ticket) []any {
	return []any{
		&t.Number,
		&t.EmployeeID,
		&t.EmployeeName,
		&t.LineOfBusiness,
		&t.OfficeSite,
		&t.Email,
		&t.Category,
		&t.Priority,
		&t.RequestType,
		&t.Description,
		&t.AdditionalDetails,
		&t.Status,
		&t.ITInCharge,
		&t.Resolution,
		&t.ApprovalStatus,
		&t.ApprovalUpdatedAt,
		&t.ApproverSnapshot,
		&t.Remarks,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(scanTargets(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
