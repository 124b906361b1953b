package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/veraledger/veraledger/internal/ledger"
	"github.com/veraledger/veraledger/internal/shared"
)

type fakePipeline struct {
	summary ledger.Summary
	err     error
	runs    int
}

func (f *fakePipeline) Run(_ context.Context) (ledger.Summary, error) {
	f.runs++
	return f.summary, f.err
}

type fakeLock struct {
	acquireErr error
	acquired   []string
	released   []string
}

func (f *fakeLock) Acquire(_ context.Context, runID string) error {
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired = append(f.acquired, runID)
	return nil
}

func (f *fakeLock) Release(_ context.Context, runID string) error {
	f.released = append(f.released, runID)
	return nil
}

type fakeRecorder struct {
	outcome string
	rows    int64
	calls   int
}

func (f *fakeRecorder) RecordRun(outcome string, _ time.Duration, rows int64) {
	f.calls++
	f.outcome = outcome
	f.rows = rows
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rebuildTask(t *testing.T, payload BalanceRebuildPayload) *asynq.Task {
	t.Helper()
	task, err := NewBalanceRebuildTask(payload)
	require.NoError(t, err)
	return task
}

func TestBalanceRebuildRunsPipeline(t *testing.T) {
	pipeline := &fakePipeline{summary: ledger.Summary{RowsWritten: 42, CumulativeAccounts: 3}}
	lock := &fakeLock{}
	recorder := &fakeRecorder{}
	job := NewBalanceRebuildJob(pipeline, lock, discardLogger(), recorder)

	err := job.Handle(context.Background(), rebuildTask(t, BalanceRebuildPayload{RunID: "run-1", Trigger: "cron"}))

	require.NoError(t, err)
	require.Equal(t, 1, pipeline.runs)
	require.Equal(t, []string{"run-1"}, lock.acquired)
	require.Equal(t, []string{"run-1"}, lock.released)
	require.Equal(t, "success", recorder.outcome)
	require.EqualValues(t, 42, recorder.rows)
}

func TestBalanceRebuildSkipsWhenLockHeld(t *testing.T) {
	pipeline := &fakePipeline{}
	lock := &fakeLock{acquireErr: shared.ErrRunInProgress}
	job := NewBalanceRebuildJob(pipeline, lock, discardLogger(), nil)

	err := job.Handle(context.Background(), rebuildTask(t, BalanceRebuildPayload{RunID: "run-2", Trigger: "http"}))

	require.NoError(t, err)
	require.Zero(t, pipeline.runs)
	require.Empty(t, lock.released)
}

func TestBalanceRebuildMalformedPayloadIsDropped(t *testing.T) {
	job := NewBalanceRebuildJob(&fakePipeline{}, nil, discardLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskBalanceRebuild, []byte("{not json")))

	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestBalanceRebuildNonRetryableFailure(t *testing.T) {
	cause := &ledger.RunError{Class: ledger.FailureClassification, Stage: "classify", Err: errors.New("dual match")}
	pipeline := &fakePipeline{err: cause}
	recorder := &fakeRecorder{}
	job := NewBalanceRebuildJob(pipeline, &fakeLock{}, discardLogger(), recorder)

	err := job.Handle(context.Background(), rebuildTask(t, BalanceRebuildPayload{RunID: "run-3"}))

	require.ErrorIs(t, err, asynq.SkipRetry)
	var runErr *ledger.RunError
	require.ErrorAs(t, err, &runErr)
	require.Equal(t, ledger.FailureClassification, runErr.Class)
	require.Equal(t, "classification", recorder.outcome)
}

func TestBalanceRebuildRetryableFailure(t *testing.T) {
	cause := &ledger.RunError{Class: ledger.FailureUpsert, Stage: "write", Month: "2025-04", Err: errors.New("deadlock")}
	pipeline := &fakePipeline{err: cause}
	recorder := &fakeRecorder{}
	job := NewBalanceRebuildJob(pipeline, &fakeLock{}, discardLogger(), recorder)

	err := job.Handle(context.Background(), rebuildTask(t, BalanceRebuildPayload{RunID: "run-4"}))

	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, "upsert", recorder.outcome)
}

func TestBalanceRebuildGeneratesRunID(t *testing.T) {
	lock := &fakeLock{}
	job := NewBalanceRebuildJob(&fakePipeline{}, lock, discardLogger(), nil)

	err := job.Handle(context.Background(), rebuildTask(t, BalanceRebuildPayload{Trigger: "http"}))

	require.NoError(t, err)
	require.Len(t, lock.acquired, 1)
	require.NotEmpty(t, lock.acquired[0])
}
