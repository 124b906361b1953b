package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/veraledger/veraledger/internal/ledger"
	"github.com/veraledger/veraledger/internal/shared"
)

// PipelineRunner recomputes and persists the monthly balance report.
type PipelineRunner interface {
	Run(ctx context.Context) (ledger.Summary, error)
}

// RunLocker guards against concurrent rebuilds.
type RunLocker interface {
	Acquire(ctx context.Context, runID string) error
	Release(ctx context.Context, runID string) error
}

// RunRecorder records rebuild outcomes for observability.
type RunRecorder interface {
	RecordRun(outcome string, duration time.Duration, rowsWritten int64)
}

// BalanceRebuildJob coordinates the rebuild workflow behind the queue.
type BalanceRebuildJob struct {
	Pipeline PipelineRunner
	Lock     RunLocker
	Logger   *slog.Logger
	Recorder RunRecorder
	clock    func() time.Time
}

// NewBalanceRebuildJob constructs the job handler.
func NewBalanceRebuildJob(pipeline PipelineRunner, lock RunLocker, logger *slog.Logger, recorder RunRecorder) *BalanceRebuildJob {
	return &BalanceRebuildJob{
		Pipeline: pipeline,
		Lock:     lock,
		Logger:   logger,
		Recorder: recorder,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one rebuild request.
func (j *BalanceRebuildJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Pipeline == nil {
		return errors.New("balance rebuild: dependencies not configured")
	}
	var payload BalanceRebuildPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RunID == "" {
		payload.RunID = uuid.NewString()
	}

	logger := j.log().With(slog.String("run_id", payload.RunID), slog.String("trigger", payload.Trigger))

	if j.Lock != nil {
		if err := j.Lock.Acquire(ctx, payload.RunID); err != nil {
			if errors.Is(err, shared.ErrRunInProgress) {
				logger.Info("rebuild already running, skipping")
				return nil
			}
			logger.Error("acquire run lock", slog.Any("error", err))
			return err
		}
		defer func() {
			if err := j.Lock.Release(context.WithoutCancel(ctx), payload.RunID); err != nil {
				logger.Warn("release run lock", slog.Any("error", err))
			}
		}()
	}

	start := j.now()
	summary, err := j.Pipeline.Run(ctx)
	elapsed := j.now().Sub(start)
	if err != nil {
		j.record(failureOutcome(err), elapsed, summary.RowsWritten)
		logger.Error("rebuild failed", slog.Any("error", err), slog.Duration("duration", elapsed))
		if !retryable(err) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}

	j.record("success", elapsed, summary.RowsWritten)
	logger.Info("rebuild completed",
		slog.Int("cumulative_accounts", summary.CumulativeAccounts),
		slog.Int("periodic_accounts", summary.PeriodicAccounts),
		slog.Int64("rows_written", summary.RowsWritten),
		slog.Duration("duration", elapsed))
	return nil
}

// retryable reports whether a retry could plausibly succeed. Missing
// tables and contradictory account typing need operator action first.
func retryable(err error) bool {
	var runErr *ledger.RunError
	if !errors.As(err, &runErr) {
		return true
	}
	switch runErr.Class {
	case ledger.FailureSchemaMissing, ledger.FailureClassification:
		return false
	default:
		return true
	}
}

func failureOutcome(err error) string {
	var runErr *ledger.RunError
	if errors.As(err, &runErr) {
		return runErr.Class.String()
	}
	return "unknown"
}

func (j *BalanceRebuildJob) record(outcome string, duration time.Duration, rows int64) {
	if j.Recorder != nil {
		j.Recorder.RecordRun(outcome, duration, rows)
	}
}

func (j *BalanceRebuildJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBalanceRebuild))
	}
	return slog.Default().With(slog.String("job", TaskBalanceRebuild))
}

func (j *BalanceRebuildJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *BalanceRebuildJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
