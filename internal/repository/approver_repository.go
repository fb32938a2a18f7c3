package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApproverRow is one directory entry: the ordered approver emails for a
// line of business.
type ApproverRow struct {
	LineOfBusiness string
	Approvers      []string
}

// ApproverRepository is the approver directory. The engine reads it exactly
// once per ticket, at snapshot time; later edits only affect new tickets.
type ApproverRepository interface {
	ListApprovers(ctx context.Context, lineOfBusiness string) ([]string, error)
	All(ctx context.Context) ([]ApproverRow, error)
	Replace(ctx context.Context, rows []ApproverRow) error
}

type approverRepository struct {
	pool *pgxpool.Pool
}

// NewApproverRepository instantiates the directory.
func NewApproverRepository(pool *pgxpool.Pool) ApproverRepository {
	return &approverRepository{pool: pool}
}

func (r *approverRepository) ListApprovers(ctx context.Context, lineOfBusiness string) ([]string, error) {
	const query = `SELECT approver_emails FROM approvers WHERE line_of_business=$1`
	var approvers []string
	err := r.pool.QueryRow(ctx, query, lineOfBusiness).Scan(&approvers)
	if err == pgx.ErrNoRows {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return approvers, nil
}

func (r *approverRepository) All(ctx context.Context) ([]ApproverRow, error) {
	const query = `SELECT line_of_business, approver_emails FROM approvers ORDER BY line_of_business`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ApproverRow
	for rows.Next() {
		var row ApproverRow
		if err := rows.Scan(&row.LineOfBusiness, &row.Approvers); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Replace swaps the whole directory in one transaction, mirroring the
// save-all semantics of the admin screen that manages it.
func (r *approverRepository) Replace(ctx context.Context, entries []ApproverRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM approvers`); err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.LineOfBusiness == "" {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO approvers (line_of_business, approver_emails) VALUES ($1,$2)`,
			entry.LineOfBusiness, entry.Approvers,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
