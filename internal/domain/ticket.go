package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// TicketType tags the marketplace channel a ticket mirrors.
type TicketType string

const (
	TicketTypeChat     TicketType = "chat"
	TicketTypeQuestion TicketType = "question"
	TicketTypeReview   TicketType = "review"
)

// TicketTypes lists every channel in registration order.
var TicketTypes = []TicketType{TicketTypeChat, TicketTypeQuestion, TicketTypeReview}

// Valid reports whether t is a known channel.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeChat, TicketTypeQuestion, TicketTypeReview:
		return true
	}
	return false
}

// ErrInvariableLocked is returned when an immutable ticket field is changed.
var ErrInvariableLocked = errors.New("ticket invariable is immutable")

// Invariable is fixed when the ticket is created. Only ProfileID and Title
// may be back-filled later.
type Invariable struct {
	Ticket    string
	ProfileID *string
	Type      TicketType
	Title     string
	TokenID   *string
}

// Ticket is the aggregate mirroring one marketplace conversation.
type Ticket struct {
	ID         string
	EventID    string
	Status     TicketStatus
	Priority   TicketPriority
	Invariable Invariable
	Messages   []TicketMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewTicket builds an unsaved ticket.
func NewTicket(inv Invariable, status TicketStatus, priority TicketPriority) *Ticket {
	return &Ticket{
		Status:     status,
		Priority:   priority,
		Invariable: inv,
	}
}

// IsNew reports whether the ticket has never been persisted.
func (t *Ticket) IsNew() bool {
	return t.ID == ""
}

// Append adds a message and returns a pointer to the stored copy.
func (t *Ticket) Append(msg TicketMessage) *TicketMessage {
	t.Messages = append(t.Messages, msg)
	return &t.Messages[len(t.Messages)-1]
}

// Open flips the ticket to Open.
func (t *Ticket) Open() {
	t.Status = TicketStatusOpen
}

// Close flips the ticket to Closed.
func (t *Ticket) Close() {
	t.Status = TicketStatusClosed
}

// LastMessage returns the most recent message or nil.
func (t *Ticket) LastMessage() *TicketMessage {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// FirstMessage returns the opening message or nil.
func (t *Ticket) FirstMessage() *TicketMessage {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[0]
}

// HasExternal reports whether a message with the marketplace id is present.
func (t *Ticket) HasExternal(external string) bool {
	for i := range t.Messages {
		if t.Messages[i].External != nil && *t.Messages[i].External == external {
			return true
		}
	}
	return false
}

// PendingMessages returns messages not yet persisted.
func (t *Ticket) PendingMessages() []*TicketMessage {
	var pending []*TicketMessage
	for i := range t.Messages {
		if t.Messages[i].ID == "" {
			pending = append(pending, &t.Messages[i])
		}
	}
	return pending
}

// BackfillOwner sets the owning profile and title discovered after creation.
func (t *Ticket) BackfillOwner(profileID, title string) error {
	if t.Invariable.ProfileID != nil && *t.Invariable.ProfileID != profileID {
		return ErrInvariableLocked
	}
	t.Invariable.ProfileID = &profileID
	if title != "" {
		t.Invariable.Title = title
	}
	return nil
}

// AwaitingReply reports whether the last message is an operator reply not yet
// mirrored to the marketplace.
func (t *Ticket) AwaitingReply() bool {
	last := t.LastMessage()
	return t.Status == TicketStatusClosed && last != nil && last.External == nil
}
