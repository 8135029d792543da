package service

import (
	"context"
	"fmt"
	"strconv"
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

const (
	dedupQuestionSync = "question-sync"
	dedupQuestion     = "question"
)

// QuestionService turns new product questions into tickets.
type QuestionService struct {
	questions QuestionAPI
	profiles  repository.ProfileRepository
	tickets   repository.TicketRepository
	support   *SupportService
	guard     dedup.Deduplicator
	seen      dedup.Deduplicator
	queue     worker.Dispatcher
	cfg       config.Config
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// QuestionDependencies bundles collaborators of the question service.
type QuestionDependencies struct {
	Questions   QuestionAPI
	ProfileRepo repository.ProfileRepository
	TicketRepo  repository.TicketRepository
	Support     *SupportService
	Dedup       dedup.Deduplicator
	Queue       worker.Dispatcher
	Config      config.Config
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewQuestionService constructs the service.
func NewQuestionService(deps QuestionDependencies) *QuestionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := deps.Dedup.Namespace(dedup.NamespaceSupport)
	return &QuestionService{
		questions: deps.Questions,
		profiles:  deps.ProfileRepo,
		tickets:   deps.TicketRepo,
		support:   deps.Support,
		guard:     base.ExpiresAfter(deps.Config.Dedup.ProfileGuardTTL),
		seen:      base.ExpiresAfter(deps.Config.Dedup.MessageTTL),
		queue:     deps.Queue,
		cfg:       deps.Config,
		metrics:   deps.Metrics,
		logger:    logger.Named("question"),
	}
}

// RegisterHandlers routes question tasks to the service.
func (s *QuestionService) RegisterHandlers(r worker.Router) {
	r.Handle(KindQuestionSync, func(ctx context.Context, t worker.Task) error {
		_, err := s.Sync(ctx, t.(QuestionSyncTask))
		return err
	})
}

// DispatchAll queues a question sync for the active tokens of one profile,
// or of every profile when profileID is nil.
func (s *QuestionService) DispatchAll(ctx context.Context, profileID *string) error {
	tokens, err := s.profiles.ListActiveTokens(ctx, profileID)
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}
	return worker.FanOut(ctx, s.cfg.Scheduler.Concurrency, tokens, func(ctx context.Context, token domain.Token) error {
		return s.queue.Dispatch(ctx, QuestionSyncTask{Profile: token.ProfileID, Token: token.ID})
	})
}

// Sync creates a ticket for every new question of the token and reports how
// many were created. Runs for the same profile are guarded for a short window.
func (s *QuestionService) Sync(ctx context.Context, task QuestionSyncTask) (int, error) {
	guard := s.guard.Deduplication(task.Profile, dedupQuestionSync)
	running, err := guard.IsExecuted(ctx)
	if err != nil {
		return 0, fmt.Errorf("question guard: %w", err)
	}
	if running {
		s.logger.Warn("question sync already running", zap.String("profile_id", task.Profile))
		return 0, nil
	}
	if err := guard.Save(ctx); err != nil {
		return 0, fmt.Errorf("question guard: %w", err)
	}
	defer func() {
		if err := guard.Delete(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("question guard not released", zap.String("key", guard.Key()), zap.Error(err))
		}
	}()

	questions, err := s.questions.ListQuestions(ctx, task.Token, ozon.QuestionFilter{Status: ozon.QuestionStatusNew})
	if err != nil {
		return 0, fmt.Errorf("list questions of token %s: %w", task.Token, err)
	}
	if len(questions) == 0 {
		return 0, nil
	}

	var created []string
	for _, q := range questions {
		ok, err := s.ingest(ctx, task, q)
		if err != nil {
			s.logger.Error("question ticket not saved", observability.Critical(),
				zap.String("question_id", q.ID),
				zap.String("profile_id", task.Profile),
				zap.Error(err),
			)
			continue
		}
		if ok {
			created = append(created, q.ID)
		}
	}

	if len(created) > 0 {
		if err := s.questions.MarkQuestionsViewed(ctx, task.Token, created); err != nil {
			s.logger.Warn("questions not marked viewed", zap.Strings("question_ids", created), zap.Error(err))
		}
	}
	return len(created), nil
}

func (s *QuestionService) ingest(ctx context.Context, task QuestionSyncTask, q ozon.Question) (bool, error) {
	handle := s.seen.Deduplication(q.ID, dedupQuestion)
	executed, err := handle.IsExecuted(ctx)
	if err != nil {
		return false, err
	}
	if executed {
		s.metrics.Inc(observability.CounterDuplicates)
		s.logger.Warn("duplicate question skipped", zap.String("question_id", q.ID))
		return false, nil
	}
	exists, err := s.tickets.ExistsTicket(ctx, domain.TicketTypeQuestion, q.ID)
	if err != nil {
		return false, err
	}
	if exists {
		s.metrics.Inc(observability.CounterDuplicates)
		s.logger.Warn("stored question skipped", zap.String("question_id", q.ID))
		return false, nil
	}

	profile, token := task.Profile, task.Token
	ticket := domain.NewTicket(domain.Invariable{
		Ticket:    q.ID,
		ProfileID: &profile,
		Type:      domain.TicketTypeQuestion,
		Title:     normalize.DefaultQuestionTitle,
		TokenID:   &token,
	}, domain.TicketStatusOpen, domain.TicketPriorityLow)

	at := q.PublishedAt
	if at.IsZero() {
		at = time.Now()
	}
	ticket.Append(domain.NewInboundMessage(q.AuthorName, normalize.RenderQuestion(q), strconv.FormatInt(q.SKU, 10), at))

	if err := s.support.Handle(ctx, ticket, systemActor()); err != nil {
		return false, err
	}
	if err := handle.Save(ctx); err != nil {
		s.logger.Warn("dedup mark failed", zap.String("key", handle.Key()), zap.Error(err))
	}
	return true, nil
}
