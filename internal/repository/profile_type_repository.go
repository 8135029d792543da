package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

// ProfileTypeRepository stores the registered support channels.
type ProfileTypeRepository interface {
	// Register inserts the type or updates its sort order. It reports whether
	// a new row was created.
	Register(ctx context.Context, profileType domain.ProfileType) (bool, error)
	List(ctx context.Context) ([]domain.ProfileType, error)
}

type profileTypeRepository struct {
	pool *pgxpool.Pool
}

// NewProfileTypeRepository builds repository.
func NewProfileTypeRepository(pool *pgxpool.Pool) ProfileTypeRepository {
	return &profileTypeRepository{pool: pool}
}

func (r *profileTypeRepository) Register(ctx context.Context, profileType domain.ProfileType) (bool, error) {
	const query = `
        INSERT INTO support_profile_types (type, sort) VALUES ($1, $2)
        ON CONFLICT (type) DO UPDATE SET sort = EXCLUDED.sort
        RETURNING (xmax = 0)`
	var inserted bool
	err := r.pool.QueryRow(ctx, query, profileType.Type, profileType.Sort).Scan(&inserted)
	return inserted, err
}

func (r *profileTypeRepository) List(ctx context.Context) ([]domain.ProfileType, error) {
	const query = `SELECT type, sort, created_at FROM support_profile_types ORDER BY sort`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ProfileType
	for rows.Next() {
		var pt domain.ProfileType
		if err := rows.Scan(&pt.Type, &pt.Sort, &pt.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, pt)
	}
	return result, rows.Err()
}
