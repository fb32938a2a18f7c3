package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// AdminRepository stores operations credentials.
type AdminRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.AdminAccount, error)
	GetByEmail(ctx context.Context, email string) (*domain.AdminAccount, error)
	Create(ctx context.Context, account *domain.AdminAccount) error
	UpdatePasswordDigest(ctx context.Context, username, digest string) error
	List(ctx context.Context) ([]domain.AdminAccount, error)
}

// AllowlistRepository answers live membership checks for elevated-role
// access. Membership is read per call and never cached so revocation takes
// effect on the very next request.
type AllowlistRepository interface {
	Contains(ctx context.Context, employeeID string) (bool, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository instantiates repository.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

const adminColumns = `username, full_name, password_digest, email, department, employee_id, role, created_at`

func (r *adminRepository) GetByUsername(ctx context.Context, username string) (*domain.AdminAccount, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_credentials WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminAccount, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_credentials WHERE LOWER(email)=$1`
	return r.fetchSingle(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *adminRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.AdminAccount, error) {
	var account domain.AdminAccount
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.Username,
		&account.FullName,
		&account.PasswordDigest,
		&account.Email,
		&account.Department,
		&account.EmployeeID,
		&account.Role,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *adminRepository) Create(ctx context.Context, account *domain.AdminAccount) error {
	const query = `
        INSERT INTO admin_credentials (username, full_name, password_digest, email, department, employee_id, role)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		account.Username,
		account.FullName,
		account.PasswordDigest,
		account.Email,
		account.Department,
		account.EmployeeID,
		account.Role,
	).Scan(&account.CreatedAt)
}

func (r *adminRepository) UpdatePasswordDigest(ctx context.Context, username, digest string) error {
	const query = `UPDATE admin_credentials SET password_digest=$1 WHERE username=$2`
	cmd, err := r.pool.Exec(ctx, query, digest, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *adminRepository) List(ctx context.Context) ([]domain.AdminAccount, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_credentials ORDER BY username`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminAccount
	for rows.Next() {
		var account domain.AdminAccount
		if err := rows.Scan(
			&account.Username,
			&account.FullName,
			&account.PasswordDigest,
			&account.Email,
			&account.Department,
			&account.EmployeeID,
			&account.Role,
			&account.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

type allowlistRepository struct {
	pool *pgxpool.Pool
}

// NewAllowlistRepository instantiates repository.
func NewAllowlistRepository(pool *pgxpool.Pool) AllowlistRepository {
	return &allowlistRepository{pool: pool}
}

func (r *allowlistRepository) Contains(ctx context.Context, employeeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM allowed_admins WHERE employee_id=$1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, strings.TrimSpace(employeeID)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
