package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

// OperatorRepository defines persistence access for admin operators.
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	Update(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
}

type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository returns a Postgres-backed implementation.
func NewOperatorRepository(pool *pgxpool.Pool) OperatorRepository {
	return &operatorRepository{pool: pool}
}

func (r *operatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	const query = `
        INSERT INTO support_operators (id, email, name, password_hash, active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at`

	id := uuid.NewString()
	err := r.pool.QueryRow(ctx, query,
		id,
		operator.Email,
		operator.Name,
		operator.PasswordHash,
		operator.Active,
	).Scan(&operator.CreatedAt, &operator.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("operator %s: %w", operator.Email, ErrDuplicateOperator)
	}
	if err != nil {
		return err
	}
	operator.ID = id
	return nil
}

func (r *operatorRepository) Update(ctx context.Context, operator *domain.Operator) error {
	const query = `
        UPDATE support_operators SET email=$1, name=$2, password_hash=$3, active=$4, updated_at=NOW()
        WHERE id=$5`

	cmd, err := r.pool.Exec(ctx, query,
		operator.Email,
		operator.Name,
		operator.PasswordHash,
		operator.Active,
		operator.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *operatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	const query = `
        SELECT id, email, name, password_hash, active, created_at, updated_at
        FROM support_operators WHERE id=$1`
	return r.fetchOne(ctx, query, id)
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	const query = `
        SELECT id, email, name, password_hash, active, created_at, updated_at
        FROM support_operators WHERE email=$1`
	return r.fetchOne(ctx, query, email)
}

func (r *operatorRepository) fetchOne(ctx context.Context, query string, arg any) (*domain.Operator, error) {
	var operator domain.Operator
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&operator.ID,
		&operator.Email,
		&operator.Name,
		&operator.PasswordHash,
		&operator.Active,
		&operator.CreatedAt,
		&operator.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &operator, nil
}
