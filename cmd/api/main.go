package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httpapi "github.com/helpdesk-ops/approval-service/internal/api/http"
	"github.com/helpdesk-ops/approval-service/internal/auth"
	"github.com/helpdesk-ops/approval-service/internal/config"
	"github.com/helpdesk-ops/approval-service/internal/events"
	"github.com/helpdesk-ops/approval-service/internal/observability"
	"github.com/helpdesk-ops/approval-service/internal/persistence"
	"github.com/helpdesk-ops/approval-service/internal/repository"
	"github.com/helpdesk-ops/approval-service/internal/service"
	"github.com/helpdesk-ops/approval-service/internal/session"
	"github.com/helpdesk-ops/approval-service/internal/worker"
	"github.com/helpdesk-ops/approval-service/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	rds := persistence.NewRedis(cfg.Redis, logger)
	defer rds.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	approverRepo := repository.NewApproverRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	allowlistRepo := repository.NewAllowlistRepository(pool)
	employeeRepo := repository.NewEmployeeRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)

	hasher := auth.NewHasher(cfg.Auth.Salt)
	links := auth.NewLinkTokenManager(cfg.Auth.LinkTokenSecret, cfg.Auth.LinkTokenTTL())
	sessions := session.NewManager(session.NewRedisStore(rds.Client), cfg.Auth.SessionTTL())
	guards := session.NewGuards(sessions, allowlistRepo)

	dispatcher := events.NewInMemoryDispatcher()
	engine := workflow.NewEngine(workflow.Dependencies{
		Tickets:    ticketRepo,
		Ledger:     approvalRepo,
		Directory:  approverRepo,
		Dispatcher: dispatcher,
		Links:      links,
		PublicURL:  cfg.Notification.PublicURL,
		ITMailbox:  cfg.Notification.ITMailbox,
		Logger:     logger,
	})

	ticketService := service.NewTicketService(ticketRepo, employeeRepo, auditRepo, engine, dispatcher, cfg.Notification.ITMailbox, logger)
	authService := service.NewAuthService(adminRepo, sessions, hasher, dispatcher, logger)
	adminService := service.NewAdminService(ticketRepo, approvalRepo, approverRepo, auditRepo, engine, dispatcher, cfg.Notification.ITMailbox, logger)
	notifications := service.NewNotificationService(cfg.Notification.EmailFrom, logger)

	worker.RegisterNotificationHandlers(dispatcher, notifications)
	worker.RegisterAuditHandlers(dispatcher, auditRepo, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
		ErrorHandler: httpapi.ErrorHandler(logger, metrics),
	})
	app.Use(observability.RequestLogger(logger, metrics))

	server := &httpapi.Server{
		AuthHandler:     httpapi.NewAuthHandler(authService),
		TicketHandler:   httpapi.NewTicketHandler(ticketService),
		DecisionHandler: httpapi.NewDecisionHandler(engine, guards, links),
		AdminHandler:    httpapi.NewAdminHandler(adminService),
		Guards:          guards,
		Metrics:         metrics,
		AppName:         cfg.App.Name,
		Version:         cfg.App.Version,
		ReadyCheck: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return rds.Ping(ctx)
		},
	}
	server.Register(app)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	logger.Info("listening", zap.String("addr", cfg.App.Addr()))
	if err := app.Listen(cfg.App.Addr()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
