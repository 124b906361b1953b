// Command apply recomputes the monthly balance report once and exits.
// The exit status encodes the failure stage: 2 missing tables, 3
// historical fetch, 4 monthly fetch, 5 upsert, 6 contradictory account
// typing, 1 anything else.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/veraledger/veraledger/internal/app"
	"github.com/veraledger/veraledger/internal/ledger"
	"github.com/veraledger/veraledger/internal/platform/db"
)

func main() {
	os.Exit(run())
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping batch run")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	window, err := ledger.NewWindow(cfg.ReportMonths, cfg.HistoricalCutover, cfg.CurrentVouchersFrom)
	if err != nil {
		logger.Error("build reporting window", slog.Any("error", err))
		return 1
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	repo := ledger.NewRepository(pool, ledger.Tables{
		OpeningBalance:  cfg.OpeningBalanceTable,
		Historical:      cfg.HistoricalTable,
		MonthlyBalance:  cfg.MonthlyBalanceTable,
		Vouchers:        cfg.VouchersTable,
		CurrentVouchers: cfg.CurrentVouchersTable,
	}, cfg.ExcludedVouchers)

	pipeline := ledger.NewPipeline(repo, window, logger)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("balance run failed",
			slog.String("run_id", summary.RunID.String()),
			slog.Any("error", err))
		return ledger.ExitCode(err)
	}

	logger.Info("balance run completed",
		slog.String("run_id", summary.RunID.String()),
		slog.Int("cumulative_accounts", summary.CumulativeAccounts),
		slog.Int("periodic_accounts", summary.PeriodicAccounts),
		slog.Int64("rows_written", summary.RowsWritten),
		slog.Duration("took", summary.Duration()))
	return 0
}
