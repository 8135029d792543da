package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/sellerdesk/ozon-support/internal/api/http"
	"github.com/sellerdesk/ozon-support/internal/api/http/handlers"
	"github.com/sellerdesk/ozon-support/internal/app"
	"github.com/sellerdesk/ozon-support/internal/auth"
	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := worker.NewQueue(cfg.Queue, logger)
	container, err := app.New(ctx, *cfg, logger, queue)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer container.Close()

	scheduler := worker.NewScheduler(logger, cfg.Scheduler.RunOnStart)
	container.Schedule(scheduler)

	queue.Start(ctx)
	scheduler.Start(ctx)

	deps := map[string]handlers.Pinger{"postgres": container.Postgres}
	if container.Redis != nil {
		deps["redis"] = container.Redis
	}

	services := container.Services
	fiberApp := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(fiberApp, logger, container.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(services.Auth, cfg.App.Env == "production"),
		Tickets:        handlers.NewTicketsHandler(services.Tickets),
		Files:          handlers.NewFilesHandler(services.Tickets),
		Orders:         handlers.NewOrdersHandler(services.OrderChat),
		Metrics:        container.Metrics,
		AuthMiddleware: auth.NewAuthMiddleware(services.Auth.TokenManager(), container.Repos.Operators),
	})

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	scheduler.Wait()
	queue.Stop()
	if err := fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
