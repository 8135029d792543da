package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/events"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/repository"
)

// SupportService is the single write path for tickets.
type SupportService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SupportDependencies bundles collaborators of the support service.
type SupportDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewSupportService constructs the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupportService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("support"),
		now:        time.Now,
	}
}

// Handle persists the ticket with its new messages as one write and then
// publishes the resulting events.
func (s *SupportService) Handle(ctx context.Context, ticket *domain.Ticket, actor events.Actor) error {
	created := ticket.IsNew()
	pending := ticket.PendingMessages()

	if err := s.tickets.Save(ctx, ticket); err != nil {
		return err
	}

	if created {
		s.metrics.Inc(observability.CounterTicketsCreated)
	}
	s.metrics.Add(observability.CounterMessagesAppended, int64(len(pending)))

	s.publish(ctx, ticket, actor, events.EventTicketSaved, events.TicketSavedPayload{
		EventID: ticket.EventID,
		Created: created,
		Status:  ticket.Status,
	})

	if len(pending) > 0 {
		payload := events.TicketMessagesAddedPayload{MessageIDs: make([]string, 0, len(pending))}
		for _, msg := range pending {
			payload.MessageIDs = append(payload.MessageIDs, msg.ID)
			if msg.Direction == domain.DirectionInbound {
				payload.Inbound++
			}
		}
		s.publish(ctx, ticket, actor, events.EventTicketMessagesAdded, payload)
	}

	if ticket.AwaitingReply() {
		s.publish(ctx, ticket, actor, events.EventTicketClosed, nil)
	}
	return nil
}

func (s *SupportService) publish(ctx context.Context, ticket *domain.Ticket, actor events.Actor, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TicketID:   ticket.ID,
		TicketType: ticket.Invariable.Type,
		Actor:      actor,
		Timestamp:  s.now(),
		Payload:    payload,
	})
}

func systemActor() events.Actor {
	return events.Actor{Type: events.ActorSystem}
}

func operatorActor(operatorID string) events.Actor {
	return events.Actor{Type: events.ActorOperator, OperatorID: &operatorID}
}
