package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccumulator(store *fakeStore, w Window) *Accumulator {
	logger := slog.Default()
	agg := NewAggregator(store, w)
	resolver := NewResolver(store, agg, w, logger)
	writer := NewWriter(store, logger)
	return NewAccumulator(resolver, agg, writer, w, logger)
}

func balanceFor(t *testing.T, calls []writeCall, month MonthKey, account string) float64 {
	t.Helper()
	for _, call := range calls {
		if call.month != month {
			continue
		}
		for _, row := range call.rows {
			if row.Account == account {
				return row.Balance
			}
		}
	}
	t.Fatalf("no row written for %s/%s", account, month)
	return 0
}

func TestCumulativeRecomputesFromWindowStart(t *testing.T) {
	// Account 1000 opens at 1000.00; January activity sums to 50 (the marker
	// voucher rows never reach these sums), February to -20. Month balances
	// must be 1050 then 1030, re-derived from scratch each month.
	store := &fakeStore{
		archival: map[MonthKey]map[string]float64{
			"2025-01": {"1000": 50},
			"2025-02": {"1000": -20},
		},
	}
	w := testWindow(t, []string{"2025-01", "2025-02"}, "2024-12", "2025-08")
	acc := newAccumulator(store, w)

	group := []SnapshotRow{{Account: "1000", OpeningBalance: 1000, AccountType: "Asset"}}
	written, err := acc.RunCumulative(context.Background(), group)
	require.NoError(t, err)
	assert.EqualValues(t, 2, written)
	assert.InDelta(t, 1050.0, balanceFor(t, store.writes, "2025-01", "1000"), 1e-9)
	assert.InDelta(t, 1030.0, balanceFor(t, store.writes, "2025-02", "1000"), 1e-9)
}

func TestCumulativePrefixSumsOverNineMonths(t *testing.T) {
	months := []string{
		"2025-01", "2025-02", "2025-03", "2025-04", "2025-05",
		"2025-06", "2025-07", "2025-08", "2025-09",
	}
	deltas := []float64{10, -5, 0, 7, 3, -2, 1, 4, -6}
	store := &fakeStore{
		archival: map[MonthKey]map[string]float64{},
		current:  map[MonthKey]map[string]float64{},
	}
	for i, m := range months {
		key := MonthKey(m)
		store.archival[key] = map[string]float64{"2000": deltas[i]}
		store.current[key] = map[string]float64{"2000": deltas[i]}
	}
	w := testWindow(t, months, "2025-07", "2025-08")
	acc := newAccumulator(store, w)

	group := []SnapshotRow{{Account: "2000", OpeningBalance: 100, AccountType: "Liability"}}
	_, err := acc.RunCumulative(context.Background(), group)
	require.NoError(t, err)

	expected := 100.0
	for i, m := range months {
		expected += deltas[i]
		assert.InDelta(t, expected, balanceFor(t, store.writes, MonthKey(m), "2000"), 1e-9, m)
	}

	// Batches land strictly in window order.
	require.Len(t, store.writes, len(months))
	for i, m := range months {
		assert.Equal(t, MonthKey(m), store.writes[i].month)
	}
}

func TestCumulativeMonthlyFetchFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		archival: map[MonthKey]map[string]float64{
			"2025-01": {"1000": 50},
		},
		voucherErr:      errors.New("connection reset"),
		voucherErrMonth: "2025-02",
	}
	w := testWindow(t, []string{"2025-01", "2025-02"}, "2024-12", "2025-08")
	acc := newAccumulator(store, w)

	group := []SnapshotRow{{Account: "1000", OpeningBalance: 1000, AccountType: "Asset"}}
	written, err := acc.RunCumulative(context.Background(), group)
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))
	// Deltas are prefetched before any batch is written, so nothing landed.
	assert.Zero(t, written)
	assert.Empty(t, store.writes)
}

func TestPeriodicMonthsAreIndependent(t *testing.T) {
	store := &fakeStore{
		journal: map[MonthKey]map[string]float64{
			"2025-05": {"5000": 9999},
		},
		current: map[MonthKey]map[string]float64{
			"2025-06": {"5000": 40},
		},
	}
	w := testWindow(t, []string{"2025-05", "2025-06"}, "2025-05", "2025-06")
	acc := newAccumulator(store, w)

	group := []SnapshotRow{{Account: "5000", OpeningBalance: 10, AccountType: "Expense"}}
	_, err := acc.RunPeriodic(context.Background(), group)
	require.NoError(t, err)

	// June reflects only June's activity: opening + 40, however large May was.
	assert.InDelta(t, 50.0, balanceFor(t, store.writes, "2025-06", "5000"), 1e-9)
	assert.InDelta(t, 10009.0, balanceFor(t, store.writes, "2025-05", "5000"), 1e-9)
}

func TestAccountsWithoutActivityFallBackToOpeningBalance(t *testing.T) {
	store := &fakeStore{
		archival: map[MonthKey]map[string]float64{
			"2025-01": {"1000": 50},
		},
	}
	w := testWindow(t, []string{"2025-01"}, "2024-12", "2025-08")
	acc := newAccumulator(store, w)

	group := []SnapshotRow{
		{Account: "1000", OpeningBalance: 100, AccountType: "Asset"},
		{Account: "1100", OpeningBalance: 250, AccountType: "Asset"},
	}
	_, err := acc.RunCumulative(context.Background(), group)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, balanceFor(t, store.writes, "2025-01", "1000"), 1e-9)
	assert.InDelta(t, 250.0, balanceFor(t, store.writes, "2025-01", "1100"), 1e-9)
}

func TestEmptyGroupsWriteNothing(t *testing.T) {
	store := &fakeStore{}
	w := testWindow(t, []string{"2025-01"}, "2024-12", "2025-08")
	acc := newAccumulator(store, w)

	written, err := acc.RunCumulative(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, written)

	written, err = acc.RunPeriodic(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Empty(t, store.writes)
}
