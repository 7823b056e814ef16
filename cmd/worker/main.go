package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/wildhaven/wildhaven/internal/app"
	"github.com/wildhaven/wildhaven/internal/audit"
	"github.com/wildhaven/wildhaven/internal/directory"
	jobmetrics "github.com/wildhaven/wildhaven/internal/jobs"
	"github.com/wildhaven/wildhaven/internal/platform/db"
	"github.com/wildhaven/wildhaven/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var dirLookup audit.PersonLookup
	if cfg.DirectoryURL != "" {
		dirLookup = directory.NewClient(cfg.DirectoryURL, &http.Client{Timeout: cfg.DirectoryTimeout})
	}

	auditRepo := audit.NewRepository(pool, cfg.DataEnvironment())
	// The worker is the end of the line: entries it cannot persist are
	// logged, never re-enqueued.
	auditSink := audit.NewSink(auditRepo, dirLookup, nil, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		AuditSink: auditSink,
		Metrics:   jobmetrics.NewMetrics(nil),
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
