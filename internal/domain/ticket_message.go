package domain

import "time"

// MessageDirection tells whether a message came from the marketplace side or
// was sent by the seller.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "IN"
	DirectionOutbound MessageDirection = "OUT"
)

// TicketMessage captures one entry of a ticket thread. Messages are immutable
// once stored.
type TicketMessage struct {
	ID        string
	TicketID  string
	EventID   string
	Name      string
	Body      string
	Direction MessageDirection
	External  *string
	CreatedAt time.Time
}

// NewInboundMessage builds a marketplace-origin message.
func NewInboundMessage(name, body, external string, at time.Time) TicketMessage {
	ext := external
	return TicketMessage{Name: name, Body: body, Direction: DirectionInbound, External: &ext, CreatedAt: at}
}

// NewOperatorMessage builds a seller reply that has no marketplace id yet.
func NewOperatorMessage(name, body string, at time.Time) TicketMessage {
	return TicketMessage{Name: name, Body: body, Direction: DirectionOutbound, CreatedAt: at}
}
