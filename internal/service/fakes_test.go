package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/dedup"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/events"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

// fakeTickets is an in-memory TicketRepository with the same event chain
// check as the Postgres implementation.
type fakeTickets struct {
	mu       sync.Mutex
	byID     map[string]*domain.Ticket
	saves    int
	saveErr  error
	onSave   func()
	conflict int
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{byID: make(map[string]*domain.Ticket)}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.Messages = append([]domain.TicketMessage(nil), t.Messages...)
	return &c
}

func (f *fakeTickets) Save(_ context.Context, ticket *domain.Ticket) error {
	if f.onSave != nil {
		f.onSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	if f.conflict > 0 {
		f.conflict--
		return repository.ErrVersionConflict
	}

	now := time.Now()
	if ticket.IsNew() {
		for _, t := range f.byID {
			if t.Invariable.Type == ticket.Invariable.Type && t.Invariable.Ticket == ticket.Invariable.Ticket {
				return repository.ErrDuplicateTicket
			}
		}
		ticket.ID = uuid.NewString()
		ticket.CreatedAt = now
	} else {
		stored, ok := f.byID[ticket.ID]
		if !ok || stored.EventID != ticket.EventID {
			return repository.ErrVersionConflict
		}
	}
	ticket.EventID = uuid.NewString()
	ticket.UpdatedAt = now
	for _, msg := range ticket.PendingMessages() {
		msg.ID = uuid.NewString()
		msg.TicketID = ticket.ID
		msg.EventID = ticket.EventID
	}
	f.byID[ticket.ID] = cloneTicket(ticket)
	f.saves++
	return nil
}

// put stores a ticket as if an earlier run had saved it.
func (f *fakeTickets) put(t *testing.T, ticket *domain.Ticket) *domain.Ticket {
	t.Helper()
	require.NoError(t, f.Save(context.Background(), ticket))
	f.mu.Lock()
	f.saves = 0
	f.mu.Unlock()
	return ticket
}

func (f *fakeTickets) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (f *fakeTickets) FindByTicket(_ context.Context, ticketType domain.TicketType, ticket string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.Invariable.Type == ticketType && t.Invariable.Ticket == ticket {
			return cloneTicket(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTickets) ExistsTicket(ctx context.Context, ticketType domain.TicketType, ticket string) (bool, error) {
	_, err := f.FindByTicket(ctx, ticketType, ticket)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeTickets) ExistsMessage(ctx context.Context, ticketType domain.TicketType, ticket, external string) (bool, error) {
	t, err := f.FindByTicket(ctx, ticketType, ticket)
	if err == repository.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.HasExternal(external), nil
}

func (f *fakeTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.byID {
		if len(filter.Types) > 0 && !containsType(filter.Types, t.Invariable.Type) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(t.Invariable.Title, *filter.SearchTerm) {
			continue
		}
		out = append(out, *cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func containsType(types []domain.TicketType, t domain.TicketType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// byTicket returns the stored ticket for a marketplace id.
func (f *fakeTickets) byTicket(t *testing.T, ticketType domain.TicketType, ticket string) *domain.Ticket {
	t.Helper()
	stored, err := f.FindByTicket(context.Background(), ticketType, ticket)
	require.NoError(t, err)
	return stored
}

type fakeProfiles struct {
	tokens  []domain.Token
	orders  map[string]string
	indexed map[string]string
}

func newFakeProfiles(tokens ...domain.Token) *fakeProfiles {
	return &fakeProfiles{tokens: tokens, orders: map[string]string{}, indexed: map[string]string{}}
}

func (f *fakeProfiles) CreateProfile(context.Context, *domain.Profile) error { return nil }
func (f *fakeProfiles) CreateToken(context.Context, *domain.Token) error     { return nil }

func (f *fakeProfiles) GetToken(_ context.Context, id string) (*domain.Token, error) {
	for i := range f.tokens {
		if f.tokens[i].ID == id {
			t := f.tokens[i]
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProfiles) ListActiveTokens(_ context.Context, profileID *string) ([]domain.Token, error) {
	var out []domain.Token
	for _, t := range f.tokens {
		if t.Active && (profileID == nil || *profileID == t.ProfileID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeProfiles) TokenForProfile(ctx context.Context, profileID string) (*domain.Token, error) {
	tokens, _ := f.ListActiveTokens(ctx, &profileID)
	if len(tokens) == 0 {
		return nil, repository.ErrNotFound
	}
	return &tokens[0], nil
}

func (f *fakeProfiles) IndexOrder(_ context.Context, number, profileID string) error {
	f.indexed[number] = profileID
	f.orders[number] = profileID
	return nil
}

func (f *fakeProfiles) FindProfileByOrderNumber(_ context.Context, number string) (string, error) {
	if p, ok := f.orders[number]; ok {
		return p, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeProfiles) Credentials(_ context.Context, tokenID string) (ozon.Credentials, error) {
	return ozon.Credentials{ClientID: tokenID, APIKey: "key"}, nil
}

type fakeDeadLetters struct {
	mu      sync.Mutex
	letters []domain.DeadLetter
}

func (f *fakeDeadLetters) Create(_ context.Context, letter *domain.DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	letter.ID = uuid.NewString()
	f.letters = append(f.letters, *letter)
	return nil
}

func (f *fakeDeadLetters) ListByTicket(_ context.Context, ticketID string) ([]domain.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeadLetter
	for _, l := range f.letters {
		if l.TicketID == ticketID {
			out = append(out, l)
		}
	}
	return out, nil
}

type dispatched struct {
	task  worker.Task
	delay time.Duration
}

// recordingQueue keeps dispatched tasks for inspection.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []dispatched
}

func (q *recordingQueue) Dispatch(_ context.Context, task worker.Task, opts ...worker.DispatchOption) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, dispatched{task: task, delay: worker.Delay(opts...)})
	return nil
}

func (q *recordingQueue) ofKind(kind string) []dispatched {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []dispatched
	for _, d := range q.tasks {
		if d.task.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

func (q *recordingQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = nil
}

// mockMarketplace is a testify mock of the whole marketplace client.
type mockMarketplace struct {
	mock.Mock
}

func (m *mockMarketplace) ListChats(ctx context.Context, token string, req ozon.ChatListRequest) (ozon.ChatPage, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(ozon.ChatPage), args.Error(1)
}

func (m *mockMarketplace) ChatHistory(ctx context.Context, token string, req ozon.ChatHistoryRequest) ([]ozon.ChatMessage, error) {
	args := m.Called(ctx, token, req)
	msgs, _ := args.Get(0).([]ozon.ChatMessage)
	return msgs, args.Error(1)
}

func (m *mockMarketplace) SendMessage(ctx context.Context, token, chatID, text string) error {
	return m.Called(ctx, token, chatID, text).Error(0)
}

func (m *mockMarketplace) SendFile(ctx context.Context, token, chatID, name string, content []byte) error {
	return m.Called(ctx, token, chatID, name, content).Error(0)
}

func (m *mockMarketplace) MarkRead(ctx context.Context, token, chatID string, fromMessageID ozon.ID) error {
	return m.Called(ctx, token, chatID, fromMessageID).Error(0)
}

func (m *mockMarketplace) StartChat(ctx context.Context, token, postingNumber string) (string, error) {
	args := m.Called(ctx, token, postingNumber)
	return args.String(0), args.Error(1)
}

func (m *mockMarketplace) DownloadFile(ctx context.Context, token, name string) (*ozon.File, error) {
	args := m.Called(ctx, token, name)
	f, _ := args.Get(0).(*ozon.File)
	return f, args.Error(1)
}

func (m *mockMarketplace) ListQuestions(ctx context.Context, token string, filter ozon.QuestionFilter) ([]ozon.Question, error) {
	args := m.Called(ctx, token, filter)
	qs, _ := args.Get(0).([]ozon.Question)
	return qs, args.Error(1)
}

func (m *mockMarketplace) AnswerQuestion(ctx context.Context, token, questionID string, sku int64, text string) error {
	return m.Called(ctx, token, questionID, sku, text).Error(0)
}

func (m *mockMarketplace) MarkQuestionsViewed(ctx context.Context, token string, ids []string) error {
	return m.Called(ctx, token, ids).Error(0)
}

func (m *mockMarketplace) ListReviews(ctx context.Context, token string, filter ozon.ReviewFilter) ([]ozon.Review, error) {
	args := m.Called(ctx, token, filter)
	rs, _ := args.Get(0).([]ozon.Review)
	return rs, args.Error(1)
}

func (m *mockMarketplace) ReviewInfo(ctx context.Context, token, reviewID string) (*ozon.ReviewInfo, error) {
	args := m.Called(ctx, token, reviewID)
	info, _ := args.Get(0).(*ozon.ReviewInfo)
	return info, args.Error(1)
}

func (m *mockMarketplace) CommentReview(ctx context.Context, token string, comment ozon.ReviewComment) (string, error) {
	args := m.Called(ctx, token, comment)
	return args.String(0), args.Error(1)
}

var _ MarketplaceAPI = (*mockMarketplace)(nil)

// harness wires every service over the fakes.
type harness struct {
	cfg         config.Config
	api         *mockMarketplace
	tickets     *fakeTickets
	profiles    *fakeProfiles
	deadLetters *fakeDeadLetters
	dedupStore  *dedup.MemoryStore
	queue       *recordingQueue
	events      events.Dispatcher
	metrics     *observability.Metrics
	logs        *observer.ObservedLogs
	log         *zap.Logger
	support     *SupportService
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Ozon.ChatHistoryLimit = 50
	cfg.Ozon.ChatListPageSize = 100
	cfg.Ozon.FileProxyPrefix = "/admin/ozon-support/files"
	cfg.Dedup.MessageTTL = 24 * time.Hour
	cfg.Dedup.ProfileGuardTTL = time.Minute
	cfg.Dedup.OrderTTL = 24 * time.Hour
	cfg.Scheduler.Concurrency = 2
	cfg.Scheduler.ReviewStagger = 5 * time.Second
	cfg.Retry.ChatSendDelay = time.Minute
	cfg.Retry.QuestionAnswerDelay = 2 * time.Minute
	cfg.Retry.ReviewCommentDelay = 3 * time.Minute
	cfg.Retry.MarkReadDelay = 10 * time.Minute
	cfg.Retry.ReviewFetchDelay = 10 * time.Minute
	cfg.Retry.MaxAttempts = 10
	return cfg
}

func newHarness(t *testing.T, tokens ...domain.Token) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	store := dedup.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		cfg:         testConfig(),
		api:         new(mockMarketplace),
		tickets:     newFakeTickets(),
		profiles:    newFakeProfiles(tokens...),
		deadLetters: &fakeDeadLetters{},
		dedupStore:  store,
		queue:       &recordingQueue{},
		events:      events.NewBus(logger),
		metrics:     observability.NewMetrics(),
		logs:        logs,
		log:         logger,
	}
	h.support = NewSupportService(SupportDependencies{
		TicketRepo: h.tickets,
		Dispatcher: h.events,
		Metrics:    h.metrics,
		Logger:     logger,
	})
	NewEventBridge(h.events, h.queue, logger).RegisterHandlers()
	return h
}

func (h *harness) logger() *zap.Logger {
	return h.log
}

// criticalLogs counts entries flagged critical.
func (h *harness) criticalLogs() int {
	n := 0
	for _, e := range h.logs.All() {
		if v, ok := e.ContextMap()["critical"]; ok && v == true {
			n++
		}
	}
	return n
}

func (h *harness) dedup() dedup.Deduplicator {
	return dedup.New(h.dedupStore)
}

func (h *harness) chatService() *ChatService {
	return NewChatService(ChatDependencies{
		Chats:          h.api,
		ProfileRepo:    h.profiles,
		TicketRepo:     h.tickets,
		DeadLetterRepo: h.deadLetters,
		Support:        h.support,
		Dedup:          h.dedup(),
		Queue:          h.queue,
		Config:         h.cfg,
		Metrics:        h.metrics,
		Logger:         h.logger(),
	})
}

func (h *harness) questionService() *QuestionService {
	return NewQuestionService(QuestionDependencies{
		Questions:   h.api,
		ProfileRepo: h.profiles,
		TicketRepo:  h.tickets,
		Support:     h.support,
		Dedup:       h.dedup(),
		Queue:       h.queue,
		Config:      h.cfg,
		Metrics:     h.metrics,
		Logger:      h.logger(),
	})
}

func (h *harness) reviewService() *ReviewService {
	return NewReviewService(ReviewDependencies{
		Reviews:        h.api,
		ProfileRepo:    h.profiles,
		TicketRepo:     h.tickets,
		DeadLetterRepo: h.deadLetters,
		Support:        h.support,
		Dedup:          h.dedup(),
		Queue:          h.queue,
		Config:         h.cfg,
		Metrics:        h.metrics,
		Logger:         h.logger(),
	})
}

func (h *harness) outboundService() *OutboundService {
	return NewOutboundService(OutboundDependencies{
		API:            h.api,
		TicketRepo:     h.tickets,
		DeadLetterRepo: h.deadLetters,
		Queue:          h.queue,
		Config:         h.cfg,
		Metrics:        h.metrics,
		Logger:         h.logger(),
	})
}

func (h *harness) orderChatService() *OrderChatService {
	return NewOrderChatService(OrderChatDependencies{
		Chats:       h.api,
		ProfileRepo: h.profiles,
		TicketRepo:  h.tickets,
		Support:     h.support,
		Queue:       h.queue,
		Dedup:       h.dedup(),
		Config:      h.cfg,
		Logger:      h.logger(),
	})
}

func (h *harness) ticketService() *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:     h.tickets,
		DeadLetterRepo: h.deadLetters,
		ProfileRepo:    h.profiles,
		Chats:          h.api,
		Support:        h.support,
		Logger:         h.logger(),
	})
}

func activeToken(id, profile string) domain.Token {
	return domain.Token{ID: id, ProfileID: profile, Name: id, ClientID: "client", APIKey: "key", Active: true}
}

func chatMessage(id string, user ozon.UserType, at time.Time, data ...string) ozon.ChatMessage {
	return ozon.ChatMessage{
		ID:        ozon.ID(id),
		User:      ozon.ChatUser{ID: "u-" + id, Type: user},
		CreatedAt: at,
		Data:      data,
	}
}

func strPtr(s string) *string { return &s }
