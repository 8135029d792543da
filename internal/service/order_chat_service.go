package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/dedup"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/normalize"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

// ErrInvalidNotice is returned for an order notice without number or token.
var ErrInvalidNotice = errors.New("order notice needs a number and a token")

const (
	// BotName signs messages written by the integration itself.
	BotName = "auto (Bot Seller)"

	dedupOrderChat = "order-chat"
)

// OrderProduct is one product line of a new order.
type OrderProduct struct {
	Name            string
	Characteristics []string
}

// OrderNotice announces a new marketplace order. Greeting overrides the
// generated welcome text when set.
type OrderNotice struct {
	Profile  string
	Token    string
	Number   string
	Products []OrderProduct
	Greeting string
}

// OrderChatService opens a buyer chat for new orders and greets the buyer.
type OrderChatService struct {
	chats    ChatAPI
	profiles repository.ProfileRepository
	tickets  repository.TicketRepository
	support  *SupportService
	queue    worker.Dispatcher
	dedup    dedup.Deduplicator
	logger   *zap.Logger
	now      func() time.Time
}

// OrderChatDependencies bundles collaborators of the order chat service.
type OrderChatDependencies struct {
	Chats       ChatAPI
	ProfileRepo repository.ProfileRepository
	TicketRepo  repository.TicketRepository
	Support     *SupportService
	Queue       worker.Dispatcher
	Dedup       dedup.Deduplicator
	Config      config.Config
	Logger      *zap.Logger
}

// NewOrderChatService constructs the service.
func NewOrderChatService(deps OrderChatDependencies) *OrderChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderChatService{
		chats:    deps.Chats,
		profiles: deps.ProfileRepo,
		tickets:  deps.TicketRepo,
		support:  deps.Support,
		queue:    deps.Queue,
		dedup: deps.Dedup.
			Namespace(dedup.NamespaceOrders).
			ExpiresAfter(deps.Config.Dedup.OrderTTL),
		logger: logger.Named("order"),
		now:    time.Now,
	}
}

// RegisterHandlers routes order chat tasks to the service.
func (s *OrderChatService) RegisterHandlers(r worker.Router) {
	r.Handle(KindOrderChat, func(ctx context.Context, t worker.Task) error {
		_, err := s.OpenForOrder(ctx, t.(OrderChatTask).Notice)
		return err
	})
}

// Submit accepts an order notice from the order system. The owner profile
// falls back to the token's profile and the order is indexed right away, so
// buyer chats about it resolve their owner even before the greeting is sent.
func (s *OrderChatService) Submit(ctx context.Context, notice OrderNotice) error {
	notice.Number = strings.TrimSpace(notice.Number)
	if notice.Number == "" || strings.TrimSpace(notice.Token) == "" {
		return ErrInvalidNotice
	}
	if notice.Profile == "" {
		token, err := s.profiles.GetToken(ctx, notice.Token)
		if err != nil {
			return fmt.Errorf("token %s: %w", notice.Token, err)
		}
		notice.Profile = token.ProfileID
	}
	if err := s.IndexOrder(ctx, notice.Number, notice.Profile); err != nil {
		return err
	}
	if err := s.queue.Dispatch(ctx, OrderChatTask{Notice: notice}); err != nil {
		return fmt.Errorf("queue order chat %s: %w", notice.Number, err)
	}
	return nil
}

// IndexOrder records which profile owns an order number.
func (s *OrderChatService) IndexOrder(ctx context.Context, number, profileID string) error {
	number = normalize.TrimPostingSuffix(strings.TrimSpace(number))
	if number == "" || profileID == "" {
		return ErrInvalidNotice
	}
	if err := s.profiles.IndexOrder(ctx, number, profileID); err != nil {
		return fmt.Errorf("index order %s: %w", number, err)
	}
	return nil
}

// OpenForOrder starts a chat for the order and stores a Closed ticket holding
// the greeting, which the chat reply channel then delivers. It returns the
// ticket, or nil when the order was already handled.
func (s *OrderChatService) OpenForOrder(ctx context.Context, notice OrderNotice) (*domain.Ticket, error) {
	if strings.TrimSpace(notice.Number) == "" || strings.TrimSpace(notice.Token) == "" {
		return nil, ErrInvalidNotice
	}
	number := normalize.TrimPostingSuffix(notice.Number)

	handle := s.dedup.Deduplication(number, dedupOrderChat)
	executed, err := handle.IsExecuted(ctx)
	if err != nil {
		return nil, fmt.Errorf("dedup check %s: %w", handle.Key(), err)
	}
	if executed {
		return nil, nil
	}

	if notice.Profile != "" {
		if err := s.profiles.IndexOrder(ctx, number, notice.Profile); err != nil {
			s.logger.Warn("order not indexed", zap.String("order", number), zap.Error(err))
		}
	}

	chatID, err := s.chats.StartChat(ctx, notice.Token, notice.Number)
	if err != nil {
		return nil, fmt.Errorf("start chat for order %s: %w", notice.Number, err)
	}
	if chatID == "" {
		// Plan restriction, nothing to greet.
		return nil, nil
	}

	exists, err := s.tickets.ExistsTicket(ctx, domain.TicketTypeChat, chatID)
	if err != nil {
		return nil, fmt.Errorf("chat exists check: %w", err)
	}
	if exists {
		_ = handle.Save(ctx)
		return nil, nil
	}

	profile, token := notice.Profile, notice.Token
	inv := domain.Invariable{
		Ticket:  chatID,
		Type:    domain.TicketTypeChat,
		Title:   normalize.OrderTitle(number),
		TokenID: &token,
	}
	if profile != "" {
		inv.ProfileID = &profile
	}
	ticket := domain.NewTicket(inv, domain.TicketStatusClosed, domain.TicketPriorityLow)

	greeting := notice.Greeting
	if strings.TrimSpace(greeting) == "" {
		greeting = OrderGreeting(number, notice.Products)
	}
	ticket.Append(domain.NewOperatorMessage(BotName, greeting, s.now()))

	if err := s.support.Handle(ctx, ticket, systemActor()); err != nil {
		s.logger.Error("order chat ticket not saved", observability.Critical(),
			zap.String("order", notice.Number),
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("save order chat: %w", err)
	}
	if err := handle.Save(ctx); err != nil {
		s.logger.Warn("dedup mark failed", zap.String("key", handle.Key()), zap.Error(err))
	}
	return ticket, nil
}

// OrderGreeting renders the welcome text sent into a new order chat.
func OrderGreeting(number string, products []OrderProduct) string {
	lines := []string{
		fmt.Sprintf("Здравствуйте! Спасибо за Ваш заказ #%s.", number),
		"Настоятельно рекомендуем Вам проверить, соответствуют ли характеристики товара Вашим требованиям:",
	}
	for _, p := range products {
		lines = append(lines, p.Name)
		if len(p.Characteristics) > 0 {
			lines = append(lines, strings.Join(p.Characteristics, ", "))
		}
	}
	lines = append(lines,
		"Обращаем Ваше внимание, что возврат товара будет возможен только в случае возникновения гарантийного случая или после предварительного согласования условий.",
		"Для уверенности в Вашем выборе наша команда готова предоставить всю необходимую информацию о продукте и его сертификации. Мы оперативно ответим на все Ваши вопросы.",
		"Спасибо что выбрали наш магазин для покупки!",
	)
	return strings.Join(lines, "\n")
}
