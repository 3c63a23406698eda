package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/channel"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
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

	pool := pg.PoolHandle()
	contactRepo := repository.NewContactRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	queueRepo := repository.NewQueueRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	whatsappRepo := repository.NewWhatsappRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	var broadcaster events.Broadcaster
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable; events stay in memory", zap.Error(err))
		broadcaster = events.NewInMemoryBroadcaster()
	} else {
		broadcaster = events.NewRedisBroadcaster(redis.Client, logger)
	}

	metrics := observability.NewMetrics()

	sessions := channel.NewSessionManager(
		channel.NewLoopbackFactory(),
		whatsappRepo,
		broadcaster,
		logger,
		cfg.Channel.SendTimeout(),
	)

	contactService := service.NewContactService(contactRepo, broadcaster)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		Broadcaster: broadcaster,
		Farewell:    channel.NewFarewellSender(sessions, contactRepo, cfg.Channel.FarewellMessage),
		Logger:      logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketService: ticketService,
		TicketRepo:    ticketRepo,
		UserRepo:      userRepo,
		QueueRepo:     queueRepo,
		Broadcaster:   broadcaster,
		Metrics:       metrics,
		Logger:        logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(userRepo, tokenManager)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	inboundWorker := worker.NewInboundWorker(sessions, contactService, assignmentService, logger)
	inboundWorker.Start()

	if pool != nil {
		conns, err := whatsappRepo.ListAll(ctx)
		if err != nil {
			logger.Fatal("failed to load channel connections", zap.Error(err))
		}
		for i := range conns {
			if _, err := sessions.Register(ctx, &conns[i]); err != nil {
				logger.Error("failed to register channel session",
					zap.Int64("whatsapp_id", conns[i].ID),
					zap.Error(err))
			}
		}
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService, messageRepo, ticketRepo),
		Whatsapp:       handlers.NewWhatsappHandler(whatsappRepo, sessions),
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
