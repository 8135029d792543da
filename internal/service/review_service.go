package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/dedup"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/normalize"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

const dedupReview = "review"

// ReviewService turns unprocessed reviews into tickets and answers the ones
// that qualify for a canned reply.
type ReviewService struct {
	reviews   ReviewAPI
	profiles  repository.ProfileRepository
	tickets   repository.TicketRepository
	support   *SupportService
	seen      dedup.Deduplicator
	queue     worker.Dispatcher
	templates ReplyTemplates
	retry     retrier
	cfg       config.Config
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// ReviewDependencies bundles collaborators of the review service.
type ReviewDependencies struct {
	Reviews        ReviewAPI
	ProfileRepo    repository.ProfileRepository
	TicketRepo     repository.TicketRepository
	DeadLetterRepo repository.DeadLetterRepository
	Support        *SupportService
	Dedup          dedup.Deduplicator
	Queue          worker.Dispatcher
	Templates      *ReplyTemplates
	Config         config.Config
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("review")
	templates := DefaultReplyTemplates
	if deps.Templates != nil {
		templates = *deps.Templates
	}
	return &ReviewService{
		reviews:  deps.Reviews,
		profiles: deps.ProfileRepo,
		tickets:  deps.TicketRepo,
		support:  deps.Support,
		seen: deps.Dedup.
			Namespace(dedup.NamespaceSupport).
			ExpiresAfter(deps.Config.Dedup.MessageTTL),
		queue:     deps.Queue,
		templates: templates,
		retry: retrier{
			queue:       deps.Queue,
			deadLetters: deps.DeadLetterRepo,
			maxAttempts: deps.Config.Retry.MaxAttempts,
			metrics:     deps.Metrics,
			logger:      logger,
		},
		cfg:     deps.Config,
		metrics: deps.Metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterHandlers routes review tasks to the service.
func (s *ReviewService) RegisterHandlers(r worker.Router) {
	r.Handle(KindReviewList, func(ctx context.Context, t worker.Task) error {
		return s.SyncList(ctx, t.(ReviewListTask))
	})
	r.Handle(KindReviewIngest, func(ctx context.Context, t worker.Task) error {
		_, err := s.Ingest(ctx, t.(ReviewIngestTask))
		return err
	})
	r.Handle(KindReviewReply, func(ctx context.Context, t worker.Task) error {
		return s.AutoReply(ctx, t.(AutoReplyTask))
	})
}

// DispatchAll queues a review list poll per active token. Polls are spread
// out by the configured stagger so profiles do not hit the API at once.
func (s *ReviewService) DispatchAll(ctx context.Context, profileID *string) error {
	tokens, err := s.profiles.ListActiveTokens(ctx, profileID)
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}
	var errs []error
	for i, token := range tokens {
		task := ReviewListTask{Profile: token.ProfileID, Token: token.ID}
		delay := time.Duration(i) * s.cfg.Scheduler.ReviewStagger
		if err := s.queue.Dispatch(ctx, task, worker.WithDelay(delay)); err != nil {
			errs = append(errs, fmt.Errorf("queue reviews of token %s: %w", token.ID, err))
		}
	}
	return errors.Join(errs...)
}

// SyncList queues an ingest task for every unprocessed review of the token.
func (s *ReviewService) SyncList(ctx context.Context, task ReviewListTask) error {
	reviews, err := s.reviews.ListReviews(ctx, task.Token, ozon.ReviewFilter{
		Sort:   ozon.SortDesc,
		Status: ozon.ReviewStatusUnprocessed,
	})
	if err != nil {
		if !ozon.Retryable(err) {
			s.logger.Error("review list rejected", zap.String("token", task.Token), zap.Error(err))
			return nil
		}
		attempts := task.Attempt + 1
		next := ReviewListTask{Profile: task.Profile, Token: task.Token, Attempt: attempts}
		return s.retry.reschedule(ctx, next, attempts, s.cfg.Retry.ReviewFetchDelay, "", domain.TicketTypeReview, err)
	}

	for _, r := range reviews {
		next := ReviewIngestTask{
			Profile:  task.Profile,
			Token:    task.Token,
			ReviewID: r.ID,
			Rating:   r.Rating,
			Text:     r.Text,
		}
		if err := s.queue.Dispatch(ctx, next); err != nil {
			return fmt.Errorf("queue review %s: %w", r.ID, err)
		}
	}
	s.logger.Debug("review list synced", zap.String("token", task.Token), zap.Int("reviews", len(reviews)))
	return nil
}

// Ingest creates the ticket of one review and reports whether it did.
func (s *ReviewService) Ingest(ctx context.Context, task ReviewIngestTask) (bool, error) {
	handle := s.seen.Deduplication(task.ReviewID, dedupReview)
	executed, err := handle.IsExecuted(ctx)
	if err != nil {
		return false, fmt.Errorf("dedup check %s: %w", handle.Key(), err)
	}
	if executed {
		s.metrics.Inc(observability.CounterDuplicates)
		s.logger.Warn("duplicate review skipped", zap.String("review_id", task.ReviewID))
		return false, nil
	}
	exists, err := s.tickets.ExistsTicket(ctx, domain.TicketTypeReview, task.ReviewID)
	if err != nil {
		return false, fmt.Errorf("review exists check: %w", err)
	}
	if exists {
		s.metrics.Inc(observability.CounterDuplicates)
		s.logger.Warn("stored review skipped", zap.String("review_id", task.ReviewID))
		return false, nil
	}

	info, err := s.reviews.ReviewInfo(ctx, task.Token, task.ReviewID)
	if err != nil {
		if errors.Is(err, ozon.ErrPlanRestricted) {
			s.logger.Debug("review info restricted by plan", zap.String("review_id", task.ReviewID))
			return false, nil
		}
		if !ozon.Retryable(err) {
			s.logger.Error("review info rejected", zap.String("review_id", task.ReviewID), zap.Error(err))
			return false, nil
		}
		attempts := task.Attempt + 1
		next := task
		next.Attempt = attempts
		return false, s.retry.reschedule(ctx, next, attempts, s.cfg.Retry.ReviewFetchDelay, "", domain.TicketTypeReview, err)
	}

	profile, token := task.Profile, task.Token
	ticket := domain.NewTicket(domain.Invariable{
		Ticket:    task.ReviewID,
		ProfileID: &profile,
		Type:      domain.TicketTypeReview,
		Title:     normalize.ReviewTitle(info.Rating),
		TokenID:   &token,
	}, domain.TicketStatusOpen, domain.TicketPriorityLow)

	at := info.PublishedAt
	if at.IsZero() {
		at = s.now()
	}
	ticket.Append(domain.NewInboundMessage(
		normalize.ReviewAuthorName,
		normalize.RenderReview(*info),
		strconv.FormatInt(info.SKU, 10),
		at,
	))

	if err := s.support.Handle(ctx, ticket, systemActor()); err != nil {
		s.logger.Error("review ticket not saved", observability.Critical(),
			zap.String("review_id", task.ReviewID),
			zap.String("profile_id", task.Profile),
			zap.Error(err),
		)
		return false, fmt.Errorf("save review %s: %w", task.ReviewID, err)
	}

	if info.Rating == 5 || strings.TrimSpace(info.Text) == "" {
		if err := s.queue.Dispatch(ctx, AutoReplyTask{TicketID: ticket.ID, Rating: info.Rating}); err != nil {
			s.logger.Warn("auto reply not queued", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	if err := handle.Save(ctx); err != nil {
		s.logger.Warn("dedup mark failed", zap.String("key", handle.Key()), zap.Error(err))
	}
	return true, nil
}

// AutoReply appends the canned answer to an open review ticket and closes
// it, which hands the answer to the review reply channel.
func (s *ReviewService) AutoReply(ctx context.Context, task AutoReplyTask) error {
	ticket, err := s.tickets.GetByID(ctx, task.TicketID)
	if err != nil {
		s.logger.Error("review ticket not found", observability.Critical(),
			zap.String("ticket_id", task.TicketID), zap.Error(err))
		return nil
	}
	if ticket.Invariable.Type != domain.TicketTypeReview || ticket.Status != domain.TicketStatusOpen {
		return nil
	}

	ticket.Append(domain.NewOperatorMessage(normalize.SellerName, s.templates.For(task.Rating), s.now()))
	ticket.Close()

	if err := s.support.Handle(ctx, ticket, systemActor()); err != nil {
		s.logger.Error("auto reply not saved", observability.Critical(),
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return fmt.Errorf("save auto reply: %w", err)
	}
	s.metrics.Inc(observability.CounterAutoReplies)
	return nil
}
