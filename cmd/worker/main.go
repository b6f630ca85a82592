package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tekni-portal/tekni-portal/internal/app"
	"github.com/tekni-portal/tekni-portal/internal/auth"
	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/platform/cache"
	"github.com/tekni-portal/tekni-portal/internal/platform/db"
	"github.com/tekni-portal/tekni-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, snapshot cache degraded", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(pool))
	pruneJob := jobs.NewSessionsPruneJob(authService, logger)

	authzCache := authz.NewCache(redisClient, cfg.AuthzSnapshotTTL)
	loader := authz.NewSnapshotLoader(authz.NewPGPageRegistry(pool), authz.NewPGRoleRegistry(pool), authzCache)
	warmupJob := jobs.NewAuthzWarmupJob(loader, logger)

	pruneTask, err := jobs.NewSessionsPruneTask(jobs.SessionsPrunePayload{Reason: "cron"})
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewAuthzWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionsPrune, Handler: pruneJob.Handle},
			{Type: jobs.TaskAuthzWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
