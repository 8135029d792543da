package service

import (
	"context"
	"errors"
	"fmt"

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
	dedupChatReconcile = "chat-reconcile"

	maxReconcileAttempts = 3
	defaultChatPageSize  = 100
)

// ChatService mirrors buyer chats into tickets.
type ChatService struct {
	chats    ChatAPI
	profiles repository.ProfileRepository
	tickets  repository.TicketRepository
	support  *SupportService
	dedup    dedup.Deduplicator
	queue    worker.Dispatcher
	renderer *normalize.BodyRenderer
	retry    retrier
	cfg      config.Config
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// ChatDependencies bundles collaborators of the chat service.
type ChatDependencies struct {
	Chats          ChatAPI
	ProfileRepo    repository.ProfileRepository
	TicketRepo     repository.TicketRepository
	DeadLetterRepo repository.DeadLetterRepository
	Support        *SupportService
	Dedup          dedup.Deduplicator
	Queue          worker.Dispatcher
	Config         config.Config
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("chat")
	return &ChatService{
		chats:    deps.Chats,
		profiles: deps.ProfileRepo,
		tickets:  deps.TicketRepo,
		support:  deps.Support,
		dedup: deps.Dedup.
			Namespace(dedup.NamespaceSupport).
			ExpiresAfter(deps.Config.Dedup.MessageTTL),
		queue:    deps.Queue,
		renderer: normalize.NewBodyRenderer(deps.Config.Ozon.FileProxyPrefix),
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
	}
}

// RegisterHandlers routes chat tasks to the service.
func (s *ChatService) RegisterHandlers(r worker.Router) {
	r.Handle(KindChatList, func(ctx context.Context, t worker.Task) error {
		return s.SyncChatList(ctx, t.(ChatListTask))
	})
	r.Handle(KindChatReconcile, func(ctx context.Context, t worker.Task) error {
		_, err := s.Reconcile(ctx, t.(ReconcileChatTask))
		return err
	})
	r.Handle(KindChatMarkRead, func(ctx context.Context, t worker.Task) error {
		return s.MarkRead(ctx, t.(MarkReadTask))
	})
}

// DispatchAll queues a chat list poll for every active token.
func (s *ChatService) DispatchAll(ctx context.Context) error {
	return s.DispatchProfile(ctx, nil, true)
}

// DispatchProfile queues chat list polls for the active tokens of one
// profile, or of all profiles when profileID is nil.
func (s *ChatService) DispatchProfile(ctx context.Context, profileID *string, unreadOnly bool) error {
	tokens, err := s.profiles.ListActiveTokens(ctx, profileID)
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}
	return worker.FanOut(ctx, s.cfg.Scheduler.Concurrency, tokens, func(ctx context.Context, token domain.Token) error {
		return s.queue.Dispatch(ctx, ChatListTask{Profile: token.ProfileID, Token: token.ID, UnreadOnly: unreadOnly})
	})
}

// SyncChatList drains the opened chats of a token and queues a
// reconciliation for every buyer chat.
func (s *ChatService) SyncChatList(ctx context.Context, task ChatListTask) error {
	chats, err := s.OpenedChats(ctx, task.Token, task.UnreadOnly)
	if err != nil {
		return err
	}
	for _, chat := range chats {
		next := ReconcileChatTask{Profile: task.Profile, Token: task.Token, ChatID: chat.ChatID}
		if err := s.queue.Dispatch(ctx, next); err != nil {
			return fmt.Errorf("queue chat %s: %w", chat.ChatID, err)
		}
	}
	s.logger.Debug("chat list synced", zap.String("token", task.Token), zap.Int("chats", len(chats)))
	return nil
}

// OpenedChats pages through the opened buyer chats of a token.
func (s *ChatService) OpenedChats(ctx context.Context, token string, unreadOnly bool) ([]ozon.ChatSummary, error) {
	pageSize := s.cfg.Ozon.ChatListPageSize
	if pageSize <= 0 {
		pageSize = defaultChatPageSize
	}

	var result []ozon.ChatSummary
	offset := 0
	for {
		page, err := s.chats.ListChats(ctx, token, ozon.ChatListRequest{
			Status:     ozon.ChatStatusOpened,
			UnreadOnly: unreadOnly,
			Limit:      pageSize,
			Offset:     offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list chats of token %s: %w", token, err)
		}
		for _, chat := range page.Chats {
			if chat.Type == ozon.ChatTypeBuyerSeller {
				result = append(result, chat)
			}
		}
		if len(page.Chats) < pageSize {
			return result, nil
		}
		offset += len(page.Chats)
	}
}

// Result summarizes one reconciliation.
type Result struct {
	Created  bool
	Updated  bool
	Appended int
	TicketID string
}

// Reconcile merges the latest history page of a chat into its ticket with a
// single write. A concurrent write to the same ticket makes the batch run
// again against the reloaded ticket.
func (s *ChatService) Reconcile(ctx context.Context, task ReconcileChatTask) (Result, error) {
	limit := task.HistoryLimit
	if limit <= 0 {
		limit = s.cfg.Ozon.ChatHistoryLimit
	}
	history, err := s.chats.ChatHistory(ctx, task.Token, ozon.ChatHistoryRequest{
		ChatID:    task.ChatID,
		Direction: ozon.DirectionBackward,
		Limit:     limit,
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat %s history: %w", task.ChatID, err)
	}
	if len(history) == 0 {
		return Result{}, nil
	}

	// Backward pages are newest first.
	ordered := make([]ozon.ChatMessage, len(history))
	for i, m := range history {
		ordered[len(history)-1-i] = m
	}

	for attempt := 1; ; attempt++ {
		res, err := s.merge(ctx, task, ordered)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxReconcileAttempts {
			s.metrics.Inc(observability.CounterVersionConflicts)
			s.logger.Warn("chat ticket changed concurrently, retrying",
				zap.String("chat_id", task.ChatID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return res, err
		}
		return res, nil
	}
}

func (s *ChatService) merge(ctx context.Context, task ReconcileChatTask, ordered []ozon.ChatMessage) (Result, error) {
	ticket, err := s.tickets.FindByTicket(ctx, domain.TicketTypeChat, task.ChatID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		ticket = s.newChatTicket(task, ordered[0])
	case err != nil:
		return Result{}, fmt.Errorf("load chat ticket %s: %w", task.ChatID, err)
	}

	var (
		accepted []dedup.Handle
		inbound  int
	)
	for _, m := range ordered {
		external := m.ID.String()
		handle := s.dedup.Deduplication(task.ChatID, external, dedupChatReconcile)

		seen, err := s.isDuplicate(ctx, ticket, handle, external)
		if err != nil {
			return Result{}, err
		}
		if seen {
			continue
		}

		_, text := normalize.DataParts(m.Data)
		author := normalize.ClassifyAuthor(m.User)
		ext := external
		ticket.Append(domain.TicketMessage{
			Name:      author.Name,
			Body:      s.renderer.Render(text, normalize.FileRef{Account: task.Token, Ticket: task.ChatID, Message: external}),
			Direction: author.Direction,
			External:  &ext,
			CreatedAt: m.CreatedAt,
		})
		ticket.Open()
		accepted = append(accepted, handle)
		if author.Direction == domain.DirectionInbound {
			inbound++
		}
	}

	if len(accepted) == 0 {
		return Result{TicketID: ticket.ID}, nil
	}

	if ticket.Invariable.ProfileID == nil {
		s.resolveOwner(ctx, ticket, ordered)
	}

	created := ticket.IsNew()
	if err := s.support.Handle(ctx, ticket, systemActor()); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrDuplicateTicket) {
			return Result{}, fmt.Errorf("save chat %s: %w", task.ChatID, repository.ErrVersionConflict)
		}
		s.logger.Error("chat ticket not saved", observability.Critical(),
			zap.String("chat_id", task.ChatID),
			zap.String("token", task.Token),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("save chat %s: %w", task.ChatID, err)
	}

	for _, h := range accepted {
		if err := h.Save(ctx); err != nil {
			s.logger.Warn("dedup mark failed", zap.String("key", h.Key()), zap.Error(err))
		}
	}

	if inbound > 0 {
		if err := s.queue.Dispatch(ctx, MarkReadTask{TicketID: ticket.ID}); err != nil {
			s.logger.Warn("mark read not queued", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	return Result{Created: created, Updated: true, Appended: len(accepted), TicketID: ticket.ID}, nil
}

// isDuplicate checks the dedup window first and storage second.
func (s *ChatService) isDuplicate(ctx context.Context, ticket *domain.Ticket, handle dedup.Handle, external string) (bool, error) {
	executed, err := handle.IsExecuted(ctx)
	if err != nil {
		return false, fmt.Errorf("dedup check %s: %w", handle.Key(), err)
	}
	if executed || ticket.HasExternal(external) {
		s.metrics.Inc(observability.CounterDuplicates)
		s.logger.Warn("duplicate chat message skipped",
			zap.String("chat_id", ticket.Invariable.Ticket), zap.String("message_id", external))
		return true, nil
	}
	if ticket.IsNew() {
		return false, nil
	}
	exists, err := s.tickets.ExistsMessage(ctx, domain.TicketTypeChat, ticket.Invariable.Ticket, external)
	if err != nil {
		return false, fmt.Errorf("message exists check: %w", err)
	}
	if exists {
		s.metrics.Inc(observability.CounterDuplicates)
		s.logger.Warn("stored chat message skipped",
			zap.String("chat_id", ticket.Invariable.Ticket), zap.String("message_id", external))
	}
	return exists, nil
}

func (s *ChatService) newChatTicket(task ReconcileChatTask, first ozon.ChatMessage) *domain.Ticket {
	refund, text := normalize.DataParts(first.Data)
	token := task.Token
	return domain.NewTicket(domain.Invariable{
		Ticket:  task.ChatID,
		Type:    domain.TicketTypeChat,
		Title:   normalize.InferTitle(text, refund, normalize.DefaultChatTitle),
		TokenID: &token,
	}, domain.TicketStatusOpen, domain.TicketPriorityLow)
}

// resolveOwner looks for an order number in the title, then in every
// message of the batch, and back-fills the first owner found.
func (s *ChatService) resolveOwner(ctx context.Context, ticket *domain.Ticket, ordered []ozon.ChatMessage) {
	candidates := make([]string, 0, len(ordered)+1)
	candidates = append(candidates, ticket.Invariable.Title)
	for _, m := range ordered {
		_, text := normalize.DataParts(m.Data)
		candidates = append(candidates, text)
	}

	for _, text := range candidates {
		number, ok := normalize.OrderNumber(text)
		if !ok {
			continue
		}
		profileID, err := s.profiles.FindProfileByOrderNumber(ctx, number)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("order lookup failed", zap.String("order", number), zap.Error(err))
			continue
		}
		if err := ticket.BackfillOwner(profileID, normalize.OrderTitle(number)); err != nil {
			s.logger.Warn("owner not back-filled", zap.String("chat_id", ticket.Invariable.Ticket), zap.Error(err))
		}
		return
	}
}

// MarkRead marks the chat read up to its last stored marketplace message.
func (s *ChatService) MarkRead(ctx context.Context, task MarkReadTask) error {
	ticket, err := s.tickets.GetByID(ctx, task.TicketID)
	if err != nil {
		s.logger.Error("chat ticket not found", observability.Critical(),
			zap.String("ticket_id", task.TicketID), zap.Error(err))
		return nil
	}
	last := ticket.LastMessage()
	if last == nil || last.External == nil {
		return nil
	}
	if ticket.Invariable.TokenID == nil {
		s.logger.Error("chat ticket has no token", observability.Critical(), zap.String("ticket_id", ticket.ID))
		return nil
	}

	err = s.chats.MarkRead(ctx, *ticket.Invariable.TokenID, ticket.Invariable.Ticket, ozon.ID(*last.External))
	if err == nil {
		return nil
	}
	if !ozon.Retryable(err) {
		s.logger.Error("mark read rejected", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil
	}
	attempts := task.Attempt + 1
	next := MarkReadTask{TicketID: task.TicketID, Attempt: attempts}
	return s.retry.reschedule(ctx, next, attempts, s.cfg.Retry.MarkReadDelay, ticket.ID, domain.TicketTypeChat, err)
}
