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

	"github.com/wildhaven/wildhaven/internal/animals"
	"github.com/wildhaven/wildhaven/internal/app"
	"github.com/wildhaven/wildhaven/internal/audit"
	"github.com/wildhaven/wildhaven/internal/directory"
	"github.com/wildhaven/wildhaven/internal/membership"
	"github.com/wildhaven/wildhaven/internal/observability"
	"github.com/wildhaven/wildhaven/internal/platform/cache"
	"github.com/wildhaven/wildhaven/internal/platform/db"
	"github.com/wildhaven/wildhaven/internal/scopes"
	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/species"
	"github.com/wildhaven/wildhaven/internal/tenants"
	"github.com/wildhaven/wildhaven/jobs"
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
	env := cfg.DataEnvironment()

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := shared.NewTokenStore(redisClient, "wildhaven_token", cfg.TokenTTL)

	// Typed-nil clients must not reach the interface fields, so the
	// directory wiring stays conditional.
	var dirRoles membership.DirectoryPort
	var dirLookup audit.PersonLookup
	if cfg.DirectoryURL != "" {
		dirClient := directory.NewClient(cfg.DirectoryURL, &http.Client{Timeout: cfg.DirectoryTimeout})
		dirRoles = dirClient
		dirLookup = dirClient
	}

	metrics := observability.NewMetrics()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	auditRepo := audit.NewRepository(pool, env)
	auditSink := audit.NewSink(auditRepo, dirLookup, queueClient, logger)
	auditService := audit.NewService(auditRepo)

	membershipRepo := membership.NewRepository(pool, env)
	membershipService := membership.NewService(membershipRepo, dirRoles, auditSink, metrics, logger)
	membershipHandler := membership.NewHandler(logger, membershipService)

	scopesRepo := scopes.NewRepository(pool, env)
	scopesService := scopes.NewService(scopesRepo, membershipService, auditSink, logger)
	scopesHandler := scopes.NewHandler(logger, scopesService)

	auditHandler := audit.NewHandler(logger, auditService, membershipService)

	tenantsRepo := tenants.NewRepository(pool, env)
	tenantsService := tenants.NewService(tenantsRepo, membershipService, logger)
	tenantsHandler := tenants.NewHandler(logger, tenantsService)

	animalsRepo := animals.NewRepository(pool, env)
	animalsService := animals.NewService(animalsRepo, membershipService, scopesService, auditSink, logger)
	animalsHandler := animals.NewHandler(logger, animalsService)

	speciesRepo := species.NewRepository(pool)
	speciesHandler := species.NewHandler(logger, speciesRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Tokens:            tokens,
		MembershipHandler: membershipHandler,
		ScopesHandler:     scopesHandler,
		AuditHandler:      auditHandler,
		TenantsHandler:    tenantsHandler,
		AnimalsHandler:    animalsHandler,
		SpeciesHandler:    speciesHandler,
		JobsHandler:       jobsHandler,
		Pool:              pool,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("environment", string(env)))
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
