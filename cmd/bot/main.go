package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/modkit/ticketing/internal/api/http"
	"github.com/modkit/ticketing/internal/api/http/handlers"
	"github.com/modkit/ticketing/internal/auth"
	"github.com/modkit/ticketing/internal/config"
	"github.com/modkit/ticketing/internal/events"
	"github.com/modkit/ticketing/internal/interaction"
	"github.com/modkit/ticketing/internal/observability"
	"github.com/modkit/ticketing/internal/persistence"
	"github.com/modkit/ticketing/internal/platform/discord"
	"github.com/modkit/ticketing/internal/repository"
	"github.com/modkit/ticketing/internal/scheduler"
	"github.com/modkit/ticketing/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	chat, err := discord.Connect(cfg.Discord.BotToken)
	if err != nil {
		logger.Fatal("failed to connect discord", zap.Error(err))
	}
	defer chat.Close() //nolint:errcheck

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool, redis.Client, logger)

	dispatcher := events.NewInMemoryDispatcher()

	alertService := service.NewAlertService(service.AlertDependencies{
		Client:       chat,
		TicketRepo:   ticketRepo,
		SettingsRepo: settingsRepo,
		Logger:       logger,
		Metrics:      metrics,
	})
	alertService.RegisterHandlers(dispatcher)

	tracker := interaction.NewExpirationTracker(chat, logger)

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:             ticketRepo,
		SettingsRepo:           settingsRepo,
		Client:                 chat,
		Dispatcher:             dispatcher,
		Tracker:                tracker,
		Logger:                 logger,
		MaxResolutionReasonLen: cfg.Escalation.MaxResolutionReasonLen,
		PromptTimeout:          cfg.Escalation.PromptTimeout(),
	})

	escalationService := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo:     ticketRepo,
		SettingsRepo:   settingsRepo,
		Alerts:         alertService,
		Logger:         logger,
		Metrics:        metrics,
		ThresholdHours: cfg.Escalation.ThresholdHours,
	})

	jobs := scheduler.NewJobRegistry(logger)
	escalationTask := scheduler.NewPeriodicTask(
		service.EscalationJobName,
		escalationService.Task(),
		cfg.Escalation.TickInterval(),
		cfg.Escalation.InitialDelay(),
		logger,
	)
	if err := jobs.Register(escalationTask); err != nil {
		logger.Fatal("failed to register escalation job", zap.Error(err))
	}
	if err := jobs.StartAll(); err != nil {
		logger.Fatal("failed to start jobs", zap.Error(err))
	}
	defer jobs.StopAll()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, jobs)
	ticketsHandler := handlers.NewTicketsHandler(lifecycleService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Tickets:        ticketsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
