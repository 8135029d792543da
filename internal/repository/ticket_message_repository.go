package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

const messageColumns = `id, ticket_id, event_id, name, body, direction, external, created_at`

// insertMessage stores msg and returns its new id.
func insertMessage(ctx context.Context, q querier, msg domain.TicketMessage) (string, error) {
	const query = `
        INSERT INTO support_ticket_messages (id, ticket_id, event_id, name, body, direction, external, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	id := uuid.NewString()
	if _, err := q.Exec(ctx, query,
		id,
		msg.TicketID,
		msg.EventID,
		msg.Name,
		msg.Body,
		msg.Direction,
		msg.External,
		msg.CreatedAt,
	); err != nil {
		return "", err
	}
	return id, nil
}

func listMessages(ctx context.Context, q querier, ticketID string) ([]domain.TicketMessage, error) {
	const query = `SELECT ` + messageColumns + `
        FROM support_ticket_messages WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.EventID,
			&msg.Name,
			&msg.Body,
			&msg.Direction,
			&msg.External,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
