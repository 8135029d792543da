package events

import (
	"time"

	"github.com/sellerdesk/ozon-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSaved         EventType = "ticket_saved"
	EventTicketClosed        EventType = "ticket_closed"
	EventTicketMessagesAdded EventType = "ticket_messages_added"
)

// ActorType tells who caused an event.
type ActorType string

const (
	ActorSystem   ActorType = "system"
	ActorOperator ActorType = "operator"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       ActorType `json:"type"`
	OperatorID *string   `json:"operator_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	TicketID   string            `json:"ticket_id"`
	TicketType domain.TicketType `json:"ticket_type"`
	Actor      Actor             `json:"actor"`
	Timestamp  time.Time         `json:"timestamp"`
	Payload    interface{}       `json:"payload"`
}

// TicketSavedPayload payload.
type TicketSavedPayload struct {
	EventID string              `json:"event_id"`
	Created bool                `json:"created"`
	Status  domain.TicketStatus `json:"status"`
}

// TicketMessagesAddedPayload payload.
type TicketMessagesAddedPayload struct {
	MessageIDs []string `json:"message_ids"`
	Inbound    int      `json:"inbound"`
}
