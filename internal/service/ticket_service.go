package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
)

// ErrTicketBusy is returned when the ticket changed while a reply was saved.
var ErrTicketBusy = errors.New("ticket changed concurrently")

// ErrNotChat is returned for chat-only actions on other ticket types.
var ErrNotChat = errors.New("ticket is not a chat")

// ErrEmptyReply is returned for a reply without text.
var ErrEmptyReply = errors.New("reply body is empty")

// TicketService is the operator surface over stored tickets.
type TicketService struct {
	tickets     repository.TicketRepository
	deadLetters repository.DeadLetterRepository
	profiles    repository.ProfileRepository
	chats       ChatAPI
	support     *SupportService
	logger      *zap.Logger
	now         func() time.Time
}

// TicketDependencies bundles collaborators of the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	DeadLetterRepo repository.DeadLetterRepository
	ProfileRepo    repository.ProfileRepository
	Chats          ChatAPI
	Support        *SupportService
	Logger         *zap.Logger
}

// TicketListFilter describes operator listing filters.
type TicketListFilter struct {
	Types      []domain.TicketType
	Statuses   []domain.TicketStatus
	ProfileID  *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		deadLetters: deps.DeadLetterRepo,
		profiles:    deps.ProfileRepo,
		chats:       deps.Chats,
		support:     deps.Support,
		logger:      logger.Named("ticket"),
		now:         time.Now,
	}
}

// Get returns a ticket with its messages.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// List returns tickets matching the filter, most recent first.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Types:      filter.Types,
		Statuses:   filter.Statuses,
		ProfileID:  filter.ProfileID,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// DeadLetters lists sends of the ticket that ran out of attempts.
func (s *TicketService) DeadLetters(ctx context.Context, id string) ([]domain.DeadLetter, error) {
	return s.deadLetters.ListByTicket(ctx, id)
}

// Reply appends an operator answer and closes the ticket. Closing queues the
// send through the reply channel of the ticket type.
func (s *TicketService) Reply(ctx context.Context, id string, operator *domain.Operator, body string) (*domain.Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyReply
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := operator.Name
	if name == "" {
		name = operator.Email
	}
	rendered := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
	ticket.Append(domain.NewOperatorMessage(name, rendered, s.now()))
	ticket.Close()

	if err := s.support.Handle(ctx, ticket, operatorActor(operator.ID)); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrTicketBusy
		}
		return nil, err
	}
	return ticket, nil
}

// SendFile uploads a file into the chat behind the ticket.
func (s *TicketService) SendFile(ctx context.Context, id, name string, content []byte) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ticket.Invariable.Type != domain.TicketTypeChat {
		return ErrNotChat
	}
	if ticket.Invariable.TokenID == nil {
		return fmt.Errorf("%w: ticket %s has no token", ozon.ErrUnknownToken, ticket.ID)
	}
	return s.chats.SendFile(ctx, *ticket.Invariable.TokenID, ticket.Invariable.Ticket, name, content)
}

// DownloadFile fetches a chat attachment with the credentials of account.
func (s *TicketService) DownloadFile(ctx context.Context, account, name string) (*ozon.File, error) {
	token, err := s.profiles.GetToken(ctx, account)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !token.Active) {
		return nil, ozon.ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	return s.chats.DownloadFile(ctx, token.ID, name)
}
