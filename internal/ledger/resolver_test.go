package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	fakeStore
	histColumns []HistoricalColumn
	currentUsed []bool
}

func (r *recordingStore) HistoricalAmounts(ctx context.Context, month MonthKey, accounts []string, column HistoricalColumn) (map[string]float64, error) {
	r.histColumns = append(r.histColumns, column)
	return r.fakeStore.HistoricalAmounts(ctx, month, accounts, column)
}

func (r *recordingStore) VoucherSums(ctx context.Context, month MonthKey, accounts []string, current bool) (map[string]float64, error) {
	r.currentUsed = append(r.currentUsed, current)
	return r.fakeStore.VoucherSums(ctx, month, accounts, current)
}

func newResolver(store *recordingStore, w Window) *Resolver {
	agg := NewAggregator(store, w)
	return NewResolver(store, agg, w, slog.Default())
}

func TestResolverHistoricalColumnPerPolicy(t *testing.T) {
	store := &recordingStore{fakeStore: fakeStore{
		smoothened: map[MonthKey]map[string]float64{"2025-06": {"1000": 11}},
		journal:    map[MonthKey]map[string]float64{"2025-06": {"1000": 22}},
	}}
	w := testWindow(t, []string{"2025-06", "2025-07", "2025-08", "2025-09"}, "2025-07", "2025-08")
	r := newResolver(store, w)

	cum, err := r.MonthDelta(context.Background(), "2025-06", PolicyCumulative, []string{"1000"})
	require.NoError(t, err)
	assert.Equal(t, 11.0, cum["1000"])

	per, err := r.MonthDelta(context.Background(), "2025-06", PolicyPeriodic, []string{"1000"})
	require.NoError(t, err)
	assert.Equal(t, 22.0, per["1000"])

	assert.Equal(t, []HistoricalColumn{ColumnSmoothened, ColumnJournal}, store.histColumns)
}

func TestResolverCutoverMonthSumsCurrentTableUniformly(t *testing.T) {
	store := &recordingStore{fakeStore: fakeStore{
		current: map[MonthKey]map[string]float64{"2025-08": {"1000": 7}},
	}}
	w := testWindow(t, []string{"2025-07", "2025-08", "2025-09"}, "2025-07", "2025-08")
	r := newResolver(store, w)

	for _, policy := range []Policy{PolicyCumulative, PolicyPeriodic} {
		delta, err := r.MonthDelta(context.Background(), "2025-08", policy, []string{"1000"})
		require.NoError(t, err)
		assert.Equal(t, 7.0, delta["1000"], string(policy))
	}
	assert.Equal(t, []bool{true, true}, store.currentUsed)
	assert.Empty(t, store.histColumns)
}

func TestResolverHistoricalFailureIsFatal(t *testing.T) {
	store := &recordingStore{fakeStore: fakeStore{histErr: errors.New("table dropped")}}
	w := testWindow(t, []string{"2025-06", "2025-07"}, "2025-07", "2025-08")
	r := newResolver(store, w)

	_, err := r.MonthDelta(context.Background(), "2025-06", PolicyCumulative, []string{"1000"})
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
}

func TestResolverCutoverFailureIsFatal(t *testing.T) {
	store := &recordingStore{fakeStore: fakeStore{voucherErr: errors.New("timeout")}}
	w := testWindow(t, []string{"2025-07", "2025-08"}, "2025-07", "2025-08")
	r := newResolver(store, w)

	_, err := r.MonthDelta(context.Background(), "2025-08", PolicyPeriodic, []string{"1000"})
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
}

func TestResolverLateMonthsDegradeToZero(t *testing.T) {
	store := &recordingStore{fakeStore: fakeStore{voucherErr: errors.New("timeout")}}
	w := testWindow(t, []string{"2025-07", "2025-08", "2025-09"}, "2025-07", "2025-08")
	r := newResolver(store, w)

	delta, err := r.MonthDelta(context.Background(), "2025-09", PolicyPeriodic, []string{"1000"})
	require.NoError(t, err)
	assert.Empty(t, delta)
}

func TestResolverMissingAccountsReadAsAbsent(t *testing.T) {
	store := &recordingStore{fakeStore: fakeStore{
		journal: map[MonthKey]map[string]float64{"2025-06": {"5000": 5}},
	}}
	w := testWindow(t, []string{"2025-06"}, "2025-07", "2025-08")
	r := newResolver(store, w)

	delta, err := r.MonthDelta(context.Background(), "2025-06", PolicyPeriodic, []string{"5000", "5100"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, delta["5000"])
	_, ok := delta["5100"]
	assert.False(t, ok)
}
