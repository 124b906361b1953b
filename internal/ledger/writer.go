package ledger

import (
	"context"
	"log/slog"
	"sort"
)

// BalanceStore persists computed monthly balance batches.
type BalanceStore interface {
	UpsertMonthlyBalances(ctx context.Context, batch []MonthlyBalanceRow) (int64, error)
}

// Writer persists one month's batch for a policy group as a single
// transaction and reports progress.
type Writer struct {
	store  BalanceStore
	logger *slog.Logger
}

// NewWriter constructs a writer over the balance store.
func NewWriter(store BalanceStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger}
}

// WriteBatch upserts the batch, sorted by account for deterministic statement
// order. A write failure rolls back the whole batch and is fatal to the run;
// batches committed for earlier months are retained.
func (w *Writer) WriteBatch(ctx context.Context, month MonthKey, policy Policy, batch []MonthlyBalanceRow) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	rows := make([]MonthlyBalanceRow, len(batch))
	copy(rows, batch)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Account < rows[j].Account })
	written, err := w.store.UpsertMonthlyBalances(ctx, rows)
	if err != nil {
		return 0, newRunError(FailureUpsert, "upsert monthly balances", month, err)
	}
	w.logger.Info("upserted monthly balances",
		slog.String("month", string(month)),
		slog.String("policy", string(policy)),
		slog.Int64("rows", written))
	return written, nil
}
