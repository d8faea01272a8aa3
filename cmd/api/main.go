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

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/storage"
	"github.com/spec-kit/helpdesk/internal/worker"
	"github.com/spec-kit/helpdesk/pkg/validation"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{"postgres": pg}

	var queue notify.Queue = notify.NewMemoryQueue(cfg.Notification.QueueSize)
	if cfg.Notification.QueueBackend == config.QueueBackendRedis {
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		queue = notify.NewRedisQueue(rdb.Client, cfg.Notification.RedisQueueKey)
		readiness["redis"] = rdb
	}

	files, err := storage.NewLocalFileStorage(cfg.Upload.Dir)
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	store := repository.NewStore(pg.PoolHandle())
	validator := validation.New()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Store:     store,
		Tokens:    tokens,
		Validator: validator,
		Logger:    logger,
	})
	ticketService := service.NewTicketService(*cfg, service.TicketDependencies{
		Store:      store,
		Files:      files,
		Dispatcher: dispatcher,
		Validator:  validator,
		Logger:     logger,
	})
	userService := service.NewUserService(*cfg, service.UserDependencies{
		Store:     store,
		Files:     files,
		Validator: validator,
		Logger:    logger,
	})
	notificationService := service.NewNotificationService(dispatcher, queue, logger, cfg.Notification)

	if err := authService.EnsureDefaultAccounts(ctx, cfg.Seed); err != nil {
		logger.Fatal("failed to seed default accounts", zap.Error(err))
	}

	sender := notify.NewWebhookSender(cfg.Notification.WebhookURL, cfg.Notification.WebhookTimeout())
	workerDone := worker.StartNotificationWorker(ctx, notificationService,
		worker.NewNotificationWorker(queue, sender, logger.Named("webhook")))

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.Upload.MaxBytes,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		CORSOrigin: cfg.App.CORSOrigin,
		Timeout:    cfg.App.RequestTimeout(),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, readiness),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AdminUsers:     handlers.NewAdminUsersHandler(userService),
		Webhooks:       handlers.NewWebhooksHandler(notificationService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		UploadDir:      files.Dir(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-workerDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
