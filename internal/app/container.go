// Package app builds the dependency graph shared by the daemon and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/dedup"
	"github.com/sellerdesk/ozon-support/internal/events"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/persistence"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/service"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

// Transport is a task dispatcher that handlers can be registered on.
type Transport interface {
	worker.Dispatcher
	worker.Router
}

// Repositories groups the pgx repositories.
type Repositories struct {
	Tickets      repository.TicketRepository
	Profiles     repository.ProfileRepository
	ProfileTypes repository.ProfileTypeRepository
	DeadLetters  repository.DeadLetterRepository
	Operators    repository.OperatorRepository
}

// Services groups the business services.
type Services struct {
	Support   *service.SupportService
	Chat      *service.ChatService
	Question  *service.QuestionService
	Review    *service.ReviewService
	Outbound  *service.OutboundService
	OrderChat *service.OrderChatService
	Tickets   *service.TicketService
	Auth      *service.AuthService
}

// Container owns every long-lived dependency.
type Container struct {
	Config    config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Postgres  *persistence.Postgres
	Redis     *persistence.Redis
	Ozon      *ozon.Client
	Events    events.Dispatcher
	Transport Transport
	Repos     Repositories
	Services  Services

	closers []func()
}

// New connects to the datastores and wires services onto transport. Queue
// handlers and event subscriptions are registered before it returns.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, transport Transport) (*Container, error) {
	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		Transport: transport,
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg
	c.closers = append(c.closers, pg.Close)

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			c.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var store dedup.Store
	switch cfg.Dedup.Backend {
	case "memory":
		mem := dedup.NewMemoryStore()
		c.closers = append(c.closers, func() { _ = mem.Close() })
		store = mem
	default:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Redis = rdb
		c.closers = append(c.closers, rdb.Close)
		store = rdb.DedupStore()
	}

	pool := pg.PoolHandle()
	c.Repos = Repositories{
		Tickets:      repository.NewTicketRepository(pool),
		Profiles:     repository.NewProfileRepository(pool),
		ProfileTypes: repository.NewProfileTypeRepository(pool),
		DeadLetters:  repository.NewDeadLetterRepository(pool),
		Operators:    repository.NewOperatorRepository(pool),
	}

	c.Ozon = ozon.NewClient(cfg.Ozon, c.Repos.Profiles, logger)
	c.Events = events.NewBus(logger)
	c.wire(store)
	return c, nil
}

func (c *Container) wire(store dedup.Store) {
	cfg := c.Config
	dd := dedup.New(store)

	support := service.NewSupportService(service.SupportDependencies{
		TicketRepo: c.Repos.Tickets,
		Dispatcher: c.Events,
		Metrics:    c.Metrics,
		Logger:     c.Logger,
	})
	c.Services = Services{
		Support: support,
		Chat: service.NewChatService(service.ChatDependencies{
			Chats:          c.Ozon,
			ProfileRepo:    c.Repos.Profiles,
			TicketRepo:     c.Repos.Tickets,
			DeadLetterRepo: c.Repos.DeadLetters,
			Support:        support,
			Dedup:          dd,
			Queue:          c.Transport,
			Config:         cfg,
			Metrics:        c.Metrics,
			Logger:         c.Logger,
		}),
		Question: service.NewQuestionService(service.QuestionDependencies{
			Questions:   c.Ozon,
			ProfileRepo: c.Repos.Profiles,
			TicketRepo:  c.Repos.Tickets,
			Support:     support,
			Dedup:       dd,
			Queue:       c.Transport,
			Config:      cfg,
			Metrics:     c.Metrics,
			Logger:      c.Logger,
		}),
		Review: service.NewReviewService(service.ReviewDependencies{
			Reviews:        c.Ozon,
			ProfileRepo:    c.Repos.Profiles,
			TicketRepo:     c.Repos.Tickets,
			DeadLetterRepo: c.Repos.DeadLetters,
			Support:        support,
			Dedup:          dd,
			Queue:          c.Transport,
			Config:         cfg,
			Metrics:        c.Metrics,
			Logger:         c.Logger,
		}),
		Outbound: service.NewOutboundService(service.OutboundDependencies{
			API:            c.Ozon,
			TicketRepo:     c.Repos.Tickets,
			DeadLetterRepo: c.Repos.DeadLetters,
			Queue:          c.Transport,
			Config:         cfg,
			Metrics:        c.Metrics,
			Logger:         c.Logger,
		}),
		OrderChat: service.NewOrderChatService(service.OrderChatDependencies{
			Chats:       c.Ozon,
			ProfileRepo: c.Repos.Profiles,
			TicketRepo:  c.Repos.Tickets,
			Support:     support,
			Queue:       c.Transport,
			Dedup:       dd,
			Config:      cfg,
			Logger:      c.Logger,
		}),
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:     c.Repos.Tickets,
			DeadLetterRepo: c.Repos.DeadLetters,
			ProfileRepo:    c.Repos.Profiles,
			Chats:          c.Ozon,
			Support:        support,
			Logger:         c.Logger,
		}),
		Auth: service.NewAuthService(cfg, c.Repos.Operators, c.Logger),
	}

	c.Services.Chat.RegisterHandlers(c.Transport)
	c.Services.Question.RegisterHandlers(c.Transport)
	c.Services.Review.RegisterHandlers(c.Transport)
	c.Services.Outbound.RegisterHandlers(c.Transport)
	c.Services.OrderChat.RegisterHandlers(c.Transport)
	service.NewEventBridge(c.Events, c.Transport, c.Logger).RegisterHandlers()
}

// Schedule registers the periodic polls.
func (c *Container) Schedule(s *worker.Scheduler) {
	sc := c.Config.Scheduler
	s.Every("chats", sc.ChatInterval, c.Services.Chat.DispatchAll)
	s.Every("questions", sc.QuestionInterval, func(ctx context.Context) error {
		return c.Services.Question.DispatchAll(ctx, nil)
	})
	s.Every("reviews", sc.ReviewInterval, func(ctx context.Context) error {
		return c.Services.Review.DispatchAll(ctx, nil)
	})
}

// Close releases datastore connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
