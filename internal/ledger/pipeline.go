package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the pipeline needs. *Repository satisfies it.
type Store interface {
	RequiredTablesExist(ctx context.Context) error
	OpeningBalances(ctx context.Context) ([]SnapshotRow, error)
	HistoricalSource
	VoucherSource
	BalanceStore
}

// Summary reports a completed run.
type Summary struct {
	RunID              uuid.UUID
	CumulativeAccounts int
	PeriodicAccounts   int
	RowsWritten        int64
	Started            time.Time
	Finished           time.Time
}

// Duration is the wall-clock time of the run.
func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Pipeline runs the full balance computation: preflight, classification, the
// cumulative group, then the periodic group. Single connection pool, no
// retries; every failure is terminal for the run, while batches already
// committed for earlier months stay in place.
type Pipeline struct {
	store  Store
	window Window
	logger *slog.Logger
}

// NewPipeline assembles the pipeline over a store and reporting window.
func NewPipeline(store Store, window Window, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, window: window, logger: logger}
}

// Run executes one computation over the whole window. Zero relevant accounts
// is a valid terminal state, not an error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.New(), Started: time.Now().UTC()}
	logger := p.logger.With(slog.String("run_id", summary.RunID.String()))

	if err := p.store.RequiredTablesExist(ctx); err != nil {
		return summary, err
	}

	snapshot, err := p.store.OpeningBalances(ctx)
	if err != nil {
		return summary, err
	}

	groups, err := Classify(snapshot)
	if err != nil {
		return summary, err
	}
	summary.CumulativeAccounts = len(groups.Cumulative)
	summary.PeriodicAccounts = len(groups.Periodic)

	if summary.CumulativeAccounts == 0 && summary.PeriodicAccounts == 0 {
		logger.Info("no asset/liability or income/expense accounts in snapshot, nothing to do")
		summary.Finished = time.Now().UTC()
		return summary, nil
	}
	logger.Info("classified accounts",
		slog.Int("cumulative", summary.CumulativeAccounts),
		slog.Int("periodic", summary.PeriodicAccounts))

	agg := NewAggregator(p.store, p.window)
	resolver := NewResolver(p.store, agg, p.window, logger)
	writer := NewWriter(p.store, logger)
	acc := NewAccumulator(resolver, agg, writer, p.window, logger)

	written, err := acc.RunCumulative(ctx, groups.Cumulative)
	summary.RowsWritten += written
	if err != nil {
		summary.Finished = time.Now().UTC()
		return summary, err
	}

	written, err = acc.RunPeriodic(ctx, groups.Periodic)
	summary.RowsWritten += written
	if err != nil {
		summary.Finished = time.Now().UTC()
		return summary, err
	}

	summary.Finished = time.Now().UTC()
	logger.Info("all months processed",
		slog.Int64("rows_written", summary.RowsWritten),
		slog.Duration("took", summary.Duration()))
	return summary, nil
}
