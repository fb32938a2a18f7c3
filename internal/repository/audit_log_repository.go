package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// AuditLogRepository is the append-only action log.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, ticketNumber string, limit int) ([]domain.AuditEntry, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository instantiates repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_logs (ticket_number, action, performed_by, details, remarks)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketNumber,
		entry.Action,
		entry.PerformedBy,
		entry.Details,
		entry.Remarks,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogRepository) List(ctx context.Context, ticketNumber string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
        SELECT id, ticket_number, action, performed_by, details, remarks, created_at
        FROM audit_logs`
	args := []any{}
	if ticketNumber != "" {
		query += ` WHERE ticket_number=$1`
		args = append(args, ticketNumber)
	}
	query += ` ORDER BY id DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketNumber,
			&entry.Action,
			&entry.PerformedBy,
			&entry.Details,
			&entry.Remarks,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
