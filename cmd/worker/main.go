package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/veraledger/veraledger/internal/app"
	"github.com/veraledger/veraledger/internal/ledger"
	"github.com/veraledger/veraledger/internal/observability"
	"github.com/veraledger/veraledger/internal/platform/cache"
	"github.com/veraledger/veraledger/internal/platform/db"
	"github.com/veraledger/veraledger/internal/shared"
	"github.com/veraledger/veraledger/jobs"
)

const runLockTTL = 15 * time.Minute

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

	window, err := ledger.NewWindow(cfg.ReportMonths, cfg.HistoricalCutover, cfg.CurrentVouchersFrom)
	if err != nil {
		logger.Error("build reporting window", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo := ledger.NewRepository(pool, ledger.Tables{
		OpeningBalance:  cfg.OpeningBalanceTable,
		Historical:      cfg.HistoricalTable,
		MonthlyBalance:  cfg.MonthlyBalanceTable,
		Vouchers:        cfg.VouchersTable,
		CurrentVouchers: cfg.CurrentVouchersTable,
	}, cfg.ExcludedVouchers)

	pipeline := ledger.NewPipeline(repo, window, logger)
	runLock := shared.NewRunLock(redisClient, runLockTTL)
	metrics := observability.NewMetrics()
	rebuildJob := jobs.NewBalanceRebuildJob(pipeline, runLock, logger, metrics)

	nightlyTask, err := jobs.NewBalanceRebuildTask(jobs.BalanceRebuildPayload{Trigger: "cron"})
	if err != nil {
		logger.Error("build nightly rebuild task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBalanceRebuild, Handler: rebuildJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RebuildCron, Task: nightlyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
