package ledger

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// prefetchLimit bounds concurrent per-month voucher sum queries.
const prefetchLimit = 4

// Accumulator combines opening balances with monthly deltas and hands the
// resulting batches to the writer, one batch per month per policy group,
// strictly in window order.
type Accumulator struct {
	resolver *Resolver
	agg      *Aggregator
	writer   *Writer
	window   Window
	logger   *slog.Logger
}

// NewAccumulator wires the accumulator to its delta sources and writer.
func NewAccumulator(resolver *Resolver, agg *Aggregator, writer *Writer, window Window, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{resolver: resolver, agg: agg, writer: writer, window: window, logger: logger}
}

// RunCumulative computes asset/liability balances: for month i, balance =
// opening + sum of all voucher activity from the window start through i.
// Every run recomputes from the window start rather than carrying forward
// stored balances, so retroactive data corrections are always absorbed.
//
// Each month's sum is an independent read-only query, so the per-month
// fetches run concurrently; results are combined in window order only after
// all of them return. Any failed month is fatal: a missing sum would silently
// understate every balance from that month on.
func (a *Accumulator) RunCumulative(ctx context.Context, group []SnapshotRow) (int64, error) {
	if len(group) == 0 {
		return 0, nil
	}
	accounts := AccountCodes(group)
	months := a.window.Months()

	deltas := make([]map[string]float64, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for i, month := range months {
		g.Go(func() error {
			sums, err := a.agg.SumMonth(gctx, month, accounts)
			if err != nil {
				return newRunError(FailureMonthlyFetch, "sum monthly vouchers", month, err)
			}
			deltas[i] = sums
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	running := make(map[string]float64, len(accounts))
	var total int64
	for i, month := range months {
		a.logger.Info("processing month for cumulative accounts",
			slog.String("month", string(month)), slog.Int("accounts", len(group)))
		for account, amount := range deltas[i] {
			running[account] += amount
		}
		batch := make([]MonthlyBalanceRow, 0, len(group))
		for _, row := range group {
			batch = append(batch, MonthlyBalanceRow{
				Account:     row.Account,
				MonthKey:    month,
				Balance:     row.OpeningBalance + running[row.Account],
				Description: row.Description,
				AccountType: row.AccountType,
			})
		}
		written, err := a.writer.WriteBatch(ctx, month, PolicyCumulative, batch)
		if err != nil {
			return total, err
		}
		total += written
	}
	return total, nil
}

// RunPeriodic computes income/expense balances: each month independently,
// balance = opening + that single month's delta from the resolver.
func (a *Accumulator) RunPeriodic(ctx context.Context, group []SnapshotRow) (int64, error) {
	if len(group) == 0 {
		return 0, nil
	}
	accounts := AccountCodes(group)

	var total int64
	for _, month := range a.window.Months() {
		a.logger.Info("processing month for periodic accounts",
			slog.String("month", string(month)), slog.Int("accounts", len(group)))
		delta, err := a.resolver.MonthDelta(ctx, month, PolicyPeriodic, accounts)
		if err != nil {
			return total, err
		}
		batch := make([]MonthlyBalanceRow, 0, len(group))
		for _, row := range group {
			batch = append(batch, MonthlyBalanceRow{
				Account:     row.Account,
				MonthKey:    month,
				Balance:     row.OpeningBalance + delta[row.Account],
				Description: row.Description,
				AccountType: row.AccountType,
			})
		}
		written, err := a.writer.WriteBatch(ctx, month, PolicyPeriodic, batch)
		if err != nil {
			return total, err
		}
		total += written
	}
	return total, nil
}
