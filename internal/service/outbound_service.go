package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/normalize"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

// ReplyChannel delivers an operator reply to one marketplace channel.
type ReplyChannel interface {
	Type() domain.TicketType
	RetryDelay() time.Duration
	Send(ctx context.Context, token string, ticket *domain.Ticket, text string) error
}

// OutboundService sends replies of closed tickets. Every channel receives
// every ReplyTask and ignores tickets of other types.
type OutboundService struct {
	tickets  repository.TicketRepository
	channels []ReplyChannel
	retry    retrier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// OutboundDependencies bundles collaborators of the outbound service.
type OutboundDependencies struct {
	API            MarketplaceAPI
	TicketRepo     repository.TicketRepository
	DeadLetterRepo repository.DeadLetterRepository
	Queue          worker.Dispatcher
	Config         config.Config
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewOutboundService wires the chat, question and review channels.
func NewOutboundService(deps OutboundDependencies) *OutboundService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("outbound")
	retry := deps.Config.Retry
	return &OutboundService{
		tickets: deps.TicketRepo,
		channels: []ReplyChannel{
			chatChannel{api: deps.API, delay: retry.ChatSendDelay},
			questionChannel{api: deps.API, delay: retry.QuestionAnswerDelay},
			reviewChannel{api: deps.API, delay: retry.ReviewCommentDelay},
		},
		retry: retrier{
			queue:       deps.Queue,
			deadLetters: deps.DeadLetterRepo,
			maxAttempts: retry.MaxAttempts,
			metrics:     deps.Metrics,
			logger:      logger,
		},
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// RegisterHandlers subscribes one handler per channel to reply tasks.
func (s *OutboundService) RegisterHandlers(r worker.Router) {
	for _, ch := range s.channels {
		ch := ch
		r.Handle(KindReply, func(ctx context.Context, t worker.Task) error {
			return s.Deliver(ctx, ch, t.(ReplyTask))
		})
	}
}

// Deliver sends the last message of the ticket through ch. It is a no-op
// unless the ticket belongs to ch, is Closed and ends with a message that has
// no marketplace id.
func (s *OutboundService) Deliver(ctx context.Context, ch ReplyChannel, task ReplyTask) error {
	ticket, err := s.tickets.GetByID(ctx, task.TicketID)
	if err != nil {
		s.logger.Error("reply ticket not found", observability.Critical(),
			zap.String("ticket_id", task.TicketID), zap.Error(err))
		return nil
	}
	if ticket.Invariable.Type != ch.Type() || ticket.Status != domain.TicketStatusClosed {
		return nil
	}
	last := ticket.LastMessage()
	if last == nil || last.External != nil {
		return nil
	}
	if ticket.Invariable.TokenID == nil {
		s.logger.Error("reply ticket has no token", observability.Critical(),
			zap.String("ticket_id", ticket.ID))
		return nil
	}

	err = ch.Send(ctx, *ticket.Invariable.TokenID, ticket, normalize.PlainText(last.Body))
	if err == nil {
		s.metrics.Inc(observability.CounterRepliesSent)
		s.logger.Info("reply sent",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel", string(ch.Type())),
			zap.Int("attempt", task.Attempt),
		)
		return nil
	}
	if errors.Is(err, ozon.ErrInvalidArgument) {
		s.logger.Error("reply rejected", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil
	}

	attempts := task.Attempt + 1
	next := ReplyTask{TicketID: task.TicketID, Attempt: attempts}
	return s.retry.reschedule(ctx, next, attempts, ch.RetryDelay(), ticket.ID, ch.Type(), err)
}

type chatChannel struct {
	api   ChatAPI
	delay time.Duration
}

func (c chatChannel) Type() domain.TicketType   { return domain.TicketTypeChat }
func (c chatChannel) RetryDelay() time.Duration { return c.delay }

func (c chatChannel) Send(ctx context.Context, token string, ticket *domain.Ticket, text string) error {
	return c.api.SendMessage(ctx, token, ticket.Invariable.Ticket, text)
}

type questionChannel struct {
	api   QuestionAPI
	delay time.Duration
}

func (c questionChannel) Type() domain.TicketType   { return domain.TicketTypeQuestion }
func (c questionChannel) RetryDelay() time.Duration { return c.delay }

// Send answers with the sku stored on the opening message.
func (c questionChannel) Send(ctx context.Context, token string, ticket *domain.Ticket, text string) error {
	first := ticket.FirstMessage()
	if first == nil || first.External == nil {
		return fmt.Errorf("%w: question %s has no sku", ozon.ErrInvalidArgument, ticket.Invariable.Ticket)
	}
	sku, err := strconv.ParseInt(*first.External, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: question %s sku %q", ozon.ErrInvalidArgument, ticket.Invariable.Ticket, *first.External)
	}
	return c.api.AnswerQuestion(ctx, token, ticket.Invariable.Ticket, sku, text)
}

type reviewChannel struct {
	api   ReviewAPI
	delay time.Duration
}

func (c reviewChannel) Type() domain.TicketType   { return domain.TicketTypeReview }
func (c reviewChannel) RetryDelay() time.Duration { return c.delay }

func (c reviewChannel) Send(ctx context.Context, token string, ticket *domain.Ticket, text string) error {
	_, err := c.api.CommentReview(ctx, token, ozon.ReviewComment{
		ReviewID:      ticket.Invariable.Ticket,
		Text:          text,
		MarkProcessed: true,
	})
	return err
}
