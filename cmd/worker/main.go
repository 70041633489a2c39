package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/koperasi/internal/app"
	jobmetrics "github.com/odyssey-erp/koperasi/internal/jobs"
	"github.com/odyssey-erp/koperasi/jobs"
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
	if !cfg.RedisOptions().Enabled() {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build runtime", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close()

	metrics := jobmetrics.NewMetrics(rt.Metrics.Registerer())
	syncJob := jobs.NewSyncBatchJob(rt.Services.Syncer, logger, metrics)
	integrityJob := jobs.NewGLIntegrityJob(rt.Stores.Journals, rt.Services.Ledger, rt.Services.LedgerMetrics, logger, metrics)

	integrityTask, err := jobs.NewGLIntegrityTask("")
	if err != nil {
		logger.Error("build gl integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOptions().Asynq(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
	})
	worker.Handle(jobs.TaskLedgerSyncBatch, syncJob.Handle)
	worker.Handle(jobs.TaskGLIntegrity, integrityJob.Handle)
	if cfg.GLIntegrityCron != "" {
		if err := worker.Schedule(cfg.GLIntegrityCron, integrityTask, asynq.MaxRetry(3)); err != nil {
			logger.Error("schedule gl integrity", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
