package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/app"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/auth"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/db"
	"github.com/Henkemannn/YuplanUnified-sub003/jobs"
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

	pool, err := db.Connect(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditPruneTask, err := jobs.NewAuditPruneTask(jobs.AuditPrunePayload{RetentionDays: 90})
	if err != nil {
		logger.Error("build audit prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionCleanup, Handler: jobs.SessionCleanupHandler(auth.NewRepository(pool), logger)},
			{Type: jobs.TaskAuditPrune, Handler: jobs.AuditPruneHandler(pool, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewSessionCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: auditPruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
