package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/citizenhub/complaint-service/internal/api/http"
	"github.com/citizenhub/complaint-service/internal/api/http/handlers"
	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/observability"
	"github.com/citizenhub/complaint-service/internal/realtime"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/internal/service"
	"github.com/citizenhub/complaint-service/internal/worker"
)

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

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer backends.close()

	origin := uuid.NewString()
	dispatcher := newDispatcher(ctx, cfg, backends, logger)
	defer dispatcher.Close() //nolint:errcheck

	metrics := observability.NewMetrics()
	unsubscribeMetrics := dispatcher.Subscribe(func(_ context.Context, e events.Event) error {
		metrics.RecordEvent(string(e.Type))
		return nil
	})
	defer unsubscribeMetrics()

	store := backends.records
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:    repository.NewUserRepository(store),
		SessionRepo: repository.NewSessionRepository(store),
		Tokens:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.App.Name),
		Logger:      logger,
	})
	if err := authService.SeedAdministrator(ctx); err != nil {
		logger.Fatal("failed to seed administrator", zap.Error(err))
	}

	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		Repo:       repository.NewComplaintRepository(store),
		Dispatcher: dispatcher,
		Origin:     origin,
		Logger:     logger,
	})
	announcementService := service.NewAnnouncementService(service.AnnouncementDependencies{
		Repo:       repository.NewAnnouncementRepository(store),
		Dispatcher: dispatcher,
		Origin:     origin,
		Logger:     logger,
	})
	if err := complaintService.Refresh(ctx); err != nil {
		logger.Fatal("failed to load complaints", zap.Error(err))
	}
	if err := announcementService.Refresh(ctx); err != nil {
		logger.Fatal("failed to load announcements", zap.Error(err))
	}
	defer complaintService.Listen(dispatcher)()
	defer announcementService.Listen(dispatcher)()

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	defer worker.StartNotificationWorker(notificationService)()

	catalog, err := service.LoadIntentCatalog(cfg.Assistant.IntentsFile)
	if err != nil {
		logger.Fatal("failed to load assistant intents", zap.Error(err))
	}
	assistantService := service.NewAssistantService(service.NewCompletionUpstream(cfg.Assistant), catalog, logger)

	validator, err := validation.New()
	if err != nil {
		logger.Fatal("failed to compile schemas", zap.Error(err))
	}

	hub := realtime.NewHub(realtime.HubDependencies{
		Dispatcher: dispatcher,
		Complaints: complaintService,
		Validator:  validator,
		Sessions:   authService,
		Logger:     logger,
		Config: realtime.HubConfig{
			SendBuffer:       cfg.Sync.SendBuffer,
			InboundPerSecond: cfg.Sync.InboundPerSecond,
			InboundBurst:     cfg.Sync.InboundBurst,
			SessionCheck:     cfg.Auth.SessionCheckInterval(),
		},
	})
	defer hub.Close()

	var jobs sync.WaitGroup
	startJob := func(name string, interval time.Duration, job worker.Job) {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			worker.RunPeriodic(ctx, name, interval, job, logger)
		}()
	}
	startJob("session-sweep", cfg.Auth.SessionCheckInterval(), worker.SweepSessions(authService.SweepExpired))
	startJob("complaint-refresh", cfg.Sync.RefreshInterval(), complaintService.Refresh)
	startJob("announcement-refresh", cfg.Sync.RefreshInterval(), announcementService.Refresh)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), authService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, backends.pingers),
		Users:           handlers.NewUsersHandler(authService, validator),
		Complaints:      handlers.NewComplaintsHandler(complaintService, validator),
		AdminComplaints: handlers.NewAdminComplaintsHandler(complaintService, validator),
		Announcements:   handlers.NewAnnouncementsHandler(announcementService, validator),
		Chat:            handlers.NewChatHandler(assistantService, validator),
		WS:              handlers.NewWSHandler(ctx, hub, authMiddleware, logger),
		AuthMiddleware:  authMiddleware,
		CORSOrigin:      cfg.App.CORSOrigin,
		AuthRateLimit:   cfg.Auth.RateLimitPerMinute,
		ChatRateLimit:   cfg.Assistant.RateLimitPerMinute,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	hub.Close()
	_ = app.Shutdown()
	jobs.Wait()
}

func newDispatcher(ctx context.Context, cfg *config.Config, backends *backends, logger *zap.Logger) events.Dispatcher {
	if cfg.Events.Driver == "redis" {
		client := backends.redisClient(ctx, cfg, logger)
		logger.Info("using redis stream dispatcher", zap.String("stream", cfg.Events.StreamKey))
		return events.NewRedisDispatcher(ctx, client.Client, cfg.Events.StreamKey, cfg.Events.StreamMaxLen, logger)
	}
	return events.NewInMemoryDispatcher(cfg.Events.ReplayBuffer, logger)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
