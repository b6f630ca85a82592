package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tekni-portal/tekni-portal/internal/app"
	"github.com/tekni-portal/tekni-portal/internal/auth"
	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/observability"
	"github.com/tekni-portal/tekni-portal/internal/pages"
	"github.com/tekni-portal/tekni-portal/internal/platform/cache"
	"github.com/tekni-portal/tekni-portal/internal/platform/db"
	"github.com/tekni-portal/tekni-portal/internal/roles"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/users"
	"github.com/tekni-portal/tekni-portal/internal/view"
	"github.com/tekni-portal/tekni-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, serving from direct reads", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "tekni_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	authzCache := authz.NewCache(redisClient, cfg.AuthzSnapshotTTL)
	pageRegistry := authz.NewPGPageRegistry(dbpool)
	roleRegistry := authz.NewPGRoleRegistry(dbpool)
	snapshotLoader := authz.NewSnapshotLoader(pageRegistry, roleRegistry, authzCache)
	if err := authzCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("authz cache subscribe", slog.Any("error", err))
	}

	guard := authz.NewGuard(authz.GuardConfig{
		Identities: authService,
		Loader:     snapshotLoader,
		Templates:  templates,
		Logger:     logger,
		Metrics:    metrics,
		LoginPath:  "/auth/login",
		Timeout:    cfg.AuthzResolveTimeout,
	})
	navigator := authz.NewNavigator(snapshotLoader)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, authzCache, logger)
	usersHandler := users.NewHandler(logger, usersService, roleRegistry, templates, csrfManager, guard, navigator)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, auditLogger, authzCache, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, templates, csrfManager, guard, navigator)

	pagesRepo := pages.NewRepository(dbpool)
	pagesService := pages.NewService(pagesRepo, auditLogger, authzCache, logger)
	pagesHandler := pages.NewHandler(logger, pagesService, roleRegistry, usersService, templates, csrfManager, guard, navigator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Metrics:        metrics,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		RolesHandler:   rolesHandler,
		PagesHandler:   pagesHandler,
		JobHandler:     jobHandler,
		Guard:          guard,
		Navigator:      navigator,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
