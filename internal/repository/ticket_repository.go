package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

// TicketFilter captures operator search parameters.
type TicketFilter struct {
	Types      []domain.TicketType
	Statuses   []domain.TicketStatus
	ProfileID  *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Save inserts a new ticket or advances the event chain of an existing
	// one. It fails with ErrVersionConflict when the ticket moved on since it
	// was loaded.
	Save(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	FindByTicket(ctx context.Context, ticketType domain.TicketType, ticket string) (*domain.Ticket, error)
	ExistsTicket(ctx context.Context, ticketType domain.TicketType, ticket string) (bool, error)
	ExistsMessage(ctx context.Context, ticketType domain.TicketType, ticket, external string) (bool, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, event_id, type, ticket, profile_id, token_id, title, status, priority, created_at, updated_at`

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ticket tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := ticket.ID
	eventID := uuid.NewString()
	var prevEventID *string
	var createdAt, updatedAt time.Time

	if ticket.IsNew() {
		id = uuid.NewString()
		const insert = `
            INSERT INTO support_tickets (id, event_id, type, ticket, profile_id, token_id, title, status, priority)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (type, ticket) DO NOTHING
            RETURNING created_at, updated_at`
		err = tx.QueryRow(ctx, insert,
			id,
			eventID,
			ticket.Invariable.Type,
			ticket.Invariable.Ticket,
			ticket.Invariable.ProfileID,
			ticket.Invariable.TokenID,
			ticket.Invariable.Title,
			ticket.Status,
			ticket.Priority,
		).Scan(&createdAt, &updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", ticket.Invariable.Type, ticket.Invariable.Ticket, ErrDuplicateTicket)
		}
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
	} else {
		prev := ticket.EventID
		prevEventID = &prev
		const update = `
            UPDATE support_tickets SET event_id=$1, profile_id=$2, title=$3, status=$4, priority=$5, updated_at=NOW()
            WHERE id=$6 AND event_id=$7
            RETURNING created_at, updated_at`
		err = tx.QueryRow(ctx, update,
			eventID,
			ticket.Invariable.ProfileID,
			ticket.Invariable.Title,
			ticket.Status,
			ticket.Priority,
			id,
			prev,
		).Scan(&createdAt, &updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ticket %s at event %s: %w", id, prev, ErrVersionConflict)
		}
		if err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
	}

	const event = `
        INSERT INTO support_ticket_events (id, ticket_id, prev_event_id, status, priority, title, profile_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, event,
		eventID,
		id,
		prevEventID,
		ticket.Status,
		ticket.Priority,
		ticket.Invariable.Title,
		ticket.Invariable.ProfileID,
	); err != nil {
		return fmt.Errorf("insert ticket event: %w", err)
	}

	pending := ticket.PendingMessages()
	ids := make([]string, len(pending))
	for i, msg := range pending {
		row := *msg
		row.TicketID = id
		row.EventID = eventID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = time.Now().UTC()
		}
		ids[i], err = insertMessage(ctx, tx, row)
		if isUniqueViolation(err) {
			return fmt.Errorf("message of ticket %s: %w", id, ErrVersionConflict)
		}
		if err != nil {
			return fmt.Errorf("insert ticket message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ticket: %w", err)
	}

	ticket.ID = id
	ticket.EventID = eventID
	ticket.CreatedAt = createdAt
	ticket.UpdatedAt = updatedAt
	for i, msg := range pending {
		msg.ID = ids[i]
		msg.TicketID = id
		msg.EventID = eventID
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = updatedAt
		}
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !isID(id) {
		return nil, ErrNotFound
	}
	const query = `SELECT ` + ticketColumns + ` FROM support_tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) FindByTicket(ctx context.Context, ticketType domain.TicketType, ticket string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM support_tickets WHERE type=$1 AND ticket=$2`
	return r.fetchSingle(ctx, query, ticketType, ticket)
}

func (r *ticketRepository) ExistsTicket(ctx context.Context, ticketType domain.TicketType, ticket string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM support_tickets WHERE type=$1 AND ticket=$2)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, ticketType, ticket).Scan(&ok)
	return ok, err
}

func (r *ticketRepository) ExistsMessage(ctx context.Context, ticketType domain.TicketType, ticket, external string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM support_ticket_messages m
            JOIN support_tickets t ON t.id = m.ticket_id
            WHERE t.type=$1 AND t.ticket=$2 AND m.external=$3)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, ticketType, ticket, external).Scan(&ok)
	return ok, err
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	ticket.Messages, err = listMessages(ctx, r.pool, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages of ticket %s: %w", ticket.ID, err)
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.Invariable.Type,
		&ticket.Invariable.Ticket,
		&ticket.Invariable.ProfileID,
		&ticket.Invariable.TokenID,
		&ticket.Invariable.Title,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListWithFilter returns tickets without their messages, most recently
// updated first.
func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args := buildTicketListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

func buildTicketListQuery(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ProfileID != nil {
		args = append(args, *filter.ProfileID)
		clauses = append(clauses, fmt.Sprintf("profile_id=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE $%d OR ticket LIKE $%d)", len(args), len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf("SELECT %s FROM support_tickets WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d",
		ticketColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))
	return query, args
}
