package dto

import (
	"time"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

// TicketListQuery captures query filters for the ticket listing.
type TicketListQuery struct {
	Types      []domain.TicketType
	Statuses   []domain.TicketStatus
	ProfileID  *string
	SearchTerm *string
	Page       int
	PageSize   int
}

// TicketSummary response.
type TicketSummary struct {
	ID        string                `json:"id"`
	Ticket    string                `json:"ticket"`
	Type      domain.TicketType     `json:"type"`
	Title     string                `json:"title"`
	ProfileID *string               `json:"profile_id"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TicketDetail response.
type TicketDetail struct {
	TicketSummary
	TokenID  *string           `json:"token_id"`
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse represents a thread entry.
type MessageResponse struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Body      string                  `json:"body"`
	Direction domain.MessageDirection `json:"direction"`
	External  *string                 `json:"external"`
	CreatedAt time.Time               `json:"created_at"`
}

// ReplyRequest payload.
type ReplyRequest struct {
	Body string `json:"body"`
}

// DeadLetterResponse describes a send that ran out of attempts.
type DeadLetterResponse struct {
	ID        string            `json:"id"`
	Channel   domain.TicketType `json:"channel"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error"`
	CreatedAt time.Time         `json:"created_at"`
}
