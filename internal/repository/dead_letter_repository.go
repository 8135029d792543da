package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

// DeadLetterRepository keeps outbound sends that ran out of attempts.
type DeadLetterRepository interface {
	Create(ctx context.Context, letter *domain.DeadLetter) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.DeadLetter, error)
}

type deadLetterRepository struct {
	pool *pgxpool.Pool
}

// NewDeadLetterRepository builds repository.
func NewDeadLetterRepository(pool *pgxpool.Pool) DeadLetterRepository {
	return &deadLetterRepository{pool: pool}
}

func (r *deadLetterRepository) Create(ctx context.Context, letter *domain.DeadLetter) error {
	const query = `
        INSERT INTO support_dead_letters (id, ticket_id, channel, attempts, last_error)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	id := uuid.NewString()
	if err := r.pool.QueryRow(ctx, query,
		id,
		letter.TicketID,
		letter.Channel,
		letter.Attempts,
		letter.LastError,
	).Scan(&letter.CreatedAt); err != nil {
		return err
	}
	letter.ID = id
	return nil
}

func (r *deadLetterRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.DeadLetter, error) {
	if !isID(ticketID) {
		return nil, nil
	}
	const query = `
        SELECT id, ticket_id, channel, attempts, last_error, created_at
        FROM support_dead_letters WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeadLetter
	for rows.Next() {
		var letter domain.DeadLetter
		if err := rows.Scan(
			&letter.ID,
			&letter.TicketID,
			&letter.Channel,
			&letter.Attempts,
			&letter.LastError,
			&letter.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, letter)
	}
	return result, rows.Err()
}
