package ledger

import (
	"context"
	"log/slog"
)

// HistoricalSource supplies pre-aggregated variance amounts.
type HistoricalSource interface {
	HistoricalAmounts(ctx context.Context, month MonthKey, accounts []string, column HistoricalColumn) (map[string]float64, error)
}

// Resolver picks the data source and aggregation rule that supply a month's
// monetary delta. Historical months read the pre-aggregated table (smoothed
// amounts for cumulative accounts, journal amounts for periodic ones); the
// cutover month and later months are summed from raw vouchers.
type Resolver struct {
	historical HistoricalSource
	agg        *Aggregator
	window     Window
	logger     *slog.Logger
}

// NewResolver constructs a resolver over the given sources.
func NewResolver(historical HistoricalSource, agg *Aggregator, window Window, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{historical: historical, agg: agg, window: window, logger: logger}
}

// MonthDelta returns account → delta for the requested month and policy.
// Accounts with no matching record are absent from the map and read as zero.
//
// Failure semantics are deliberately asymmetric: historical reads and the
// cutover-month sum are fatal because their absence would corrupt totals,
// while later single-month lookups degrade to an empty result.
func (r *Resolver) MonthDelta(ctx context.Context, month MonthKey, policy Policy, accounts []string) (map[string]float64, error) {
	if r.window.IsHistorical(month) {
		column := ColumnJournal
		if policy == PolicyCumulative {
			column = ColumnSmoothened
		}
		amounts, err := r.historical.HistoricalAmounts(ctx, month, accounts, column)
		if err != nil {
			return nil, newRunError(FailureHistoricalFetch, "fetch historical variance", month, err)
		}
		return amounts, nil
	}

	if month == r.window.CutoverMonth() {
		// First transactional month: summed from the current-period table
		// uniformly across policies, with historical-grade fatality.
		amounts, err := r.agg.SumMonthCurrent(ctx, month, accounts)
		if err != nil {
			return nil, newRunError(FailureHistoricalFetch, "sum cutover-month vouchers", month, err)
		}
		return amounts, nil
	}

	amounts, err := r.agg.SumMonth(ctx, month, accounts)
	if err != nil {
		r.logger.Warn("voucher sum failed, treating month as zero activity",
			slog.String("month", string(month)), slog.Any("error", err))
		return map[string]float64{}, nil
	}
	return amounts, nil
}
