package ledger

import "context"

// VoucherSource supplies per-month transaction sums.
type VoucherSource interface {
	VoucherSums(ctx context.Context, month MonthKey, accounts []string, current bool) (map[string]float64, error)
}

// Aggregator computes monthly transaction activity per account, picking the
// voucher table by the archival/current boundary. Failures propagate to the
// caller: the cumulative path must treat a missing month as fatal because a
// silently absent sum would understate every later running total.
type Aggregator struct {
	src    VoucherSource
	window Window
}

// NewAggregator wires the aggregator to its voucher source.
func NewAggregator(src VoucherSource, window Window) *Aggregator {
	return &Aggregator{src: src, window: window}
}

// SumMonth returns SUM(amount) grouped by account for the calendar month,
// marker vouchers excluded. Accounts without activity are absent from the map.
func (a *Aggregator) SumMonth(ctx context.Context, month MonthKey, accounts []string) (map[string]float64, error) {
	return a.src.VoucherSums(ctx, month, accounts, a.window.UsesCurrentTable(month))
}

// SumMonthCurrent sums from the current-period table regardless of the
// boundary. The resolver uses it for the cutover month.
func (a *Aggregator) SumMonthCurrent(ctx context.Context, month MonthKey, accounts []string) (map[string]float64, error) {
	return a.src.VoucherSums(ctx, month, accounts, true)
}
