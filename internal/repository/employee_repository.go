package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// EmployeeRepository reads the employee directory used to verify requesters.
type EmployeeRepository interface {
	GetByCodeHash(ctx context.Context, codeHash string) (*domain.Employee, error)
	BusinessUnits(ctx context.Context) ([]string, error)
}

type employeeRepository struct {
	pool *pgxpool.Pool
}

// NewEmployeeRepository instantiates repository.
func NewEmployeeRepository(pool *pgxpool.Pool) EmployeeRepository {
	return &employeeRepository{pool: pool}
}

func (r *employeeRepository) GetByCodeHash(ctx context.Context, codeHash string) (*domain.Employee, error) {
	const query = `
        SELECT id, name, line_of_business, email, code_hash
        FROM employees WHERE code_hash=$1`
	var emp domain.Employee
	if err := r.pool.QueryRow(ctx, query, codeHash).Scan(
		&emp.ID,
		&emp.Name,
		&emp.LineOfBusiness,
		&emp.Email,
		&emp.CodeHash,
	); err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepository) BusinessUnits(ctx context.Context) ([]string, error) {
	const query = `
        SELECT DISTINCT line_of_business FROM employees
        WHERE line_of_business <> '' ORDER BY line_of_business`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}
