package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/app"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/auth"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/impersonate"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/menus"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/observability"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/cache"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/db"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/ratelimit"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/schedule"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/users"
	"github.com/Henkemannn/YuplanUnified-sub003/jobs"
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

	dbpool, err := db.Connect(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "yuplan_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	flagStore := shared.NewFlagStore(dbpool, cfg.FlagCacheTTL, map[string]bool{
		shared.FlagCSRFStrict: cfg.CSRFStrictDefault,
	})
	csrfGuard := shared.NewCSRFGuard(flagStore, cfg.CSRFSecret, cfg.IsProduction(), "/auth/login")
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	loginLimiter := ratelimit.New(ratelimit.NewRedisStore(redisClient), ratelimit.Config{
		Window:      cfg.LoginWindow,
		MaxFailures: cfg.LoginMaxFailures,
		Lock:        cfg.LoginLock,
	}).WithLockoutRecorder(metrics)

	impersonateManager := impersonate.NewManager(
		impersonate.NewRedisStore(redisClient),
		cfg.ImpersonationTTL,
		shared.SystemClock{},
		logger,
		auditLogger,
	)
	impersonateHandler := impersonate.NewHandler(logger, impersonateManager)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, loginLimiter).
		WithImpersonations(impersonateManager)

	guard := rbac.NewGuard(impersonateManager)
	rbacMiddleware := rbac.Middleware{Guard: guard, Logger: logger, Denials: metrics}

	menuService := menus.NewService(menus.NewRepository(dbpool))
	menuHandler := menus.NewHandler(logger, menuService, metrics)
	menuExportHandler := menus.NewExportHandler(logger, menuService)

	scheduleService := schedule.NewService(schedule.NewRepository(dbpool))
	scheduleHandler := schedule.NewHandler(logger, scheduleService, metrics)

	userService := users.NewService(users.NewRepository(dbpool))
	userHandler := users.NewHandler(logger, userService, metrics)

	identity := auth.NewResolver(logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFGuard:          csrfGuard,
		Identity:           identity,
		AuthHandler:        authHandler,
		ImpersonateHandler: impersonateHandler,
		MenuHandler:        menuHandler,
		MenuExportHandler:  menuExportHandler,
		ScheduleHandler:    scheduleHandler,
		UserHandler:        userHandler,
		RBACMiddleware:     rbacMiddleware,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
