package ledger

import (
	"errors"
	"fmt"
)

// Policy determines how an account's monthly balance is accumulated.
type Policy string

const (
	// PolicyCumulative compounds activity from the window start (asset/liability).
	PolicyCumulative Policy = "CUMULATIVE"
	// PolicyPeriodic reports each month's activity in isolation (income/expense).
	PolicyPeriodic Policy = "PERIODIC"
)

// SnapshotRow is one account from the opening-balance snapshot.
type SnapshotRow struct {
	Account        string
	OpeningBalance float64
	AccountType    string
	Description    string
}

// MonthlyBalanceRow is one computed reporting row. The balance is persisted
// into the monthly table's opening_balance column, matching the existing schema.
type MonthlyBalanceRow struct {
	Account     string
	MonthKey    MonthKey
	Balance     float64
	Description string
	AccountType string
}

// FailureClass partitions run failures by the exit code they map to.
type FailureClass int

const (
	// FailureUnknown covers configuration and connection errors.
	FailureUnknown FailureClass = iota
	// FailureSchemaMissing signals a required table is absent.
	FailureSchemaMissing
	// FailureHistoricalFetch signals the historical variance source failed.
	FailureHistoricalFetch
	// FailureMonthlyFetch signals a per-month transaction sum failed.
	FailureMonthlyFetch
	// FailureUpsert signals the monthly balance write failed.
	FailureUpsert
	// FailureClassification signals an account matched both policy keyword sets.
	FailureClassification
)

// ExitCode maps the failure class to the process exit status.
func (c FailureClass) ExitCode() int {
	switch c {
	case FailureSchemaMissing:
		return 2
	case FailureHistoricalFetch:
		return 3
	case FailureMonthlyFetch:
		return 4
	case FailureUpsert:
		return 5
	case FailureClassification:
		return 6
	default:
		return 1
	}
}

// String names the class for logs.
func (c FailureClass) String() string {
	switch c {
	case FailureSchemaMissing:
		return "schema_missing"
	case FailureHistoricalFetch:
		return "historical_fetch"
	case FailureMonthlyFetch:
		return "monthly_fetch"
	case FailureUpsert:
		return "upsert"
	case FailureClassification:
		return "classification"
	default:
		return "unknown"
	}
}

// RunError is a terminal failure carrying the class and the stage it surfaced at.
type RunError struct {
	Class FailureClass
	Stage string
	Month MonthKey
	Err   error
}

// Error renders the failure with its context.
func (e *RunError) Error() string {
	if e.Month != "" {
		return fmt.Sprintf("ledger: %s (%s, month %s): %v", e.Stage, e.Class, e.Month, e.Err)
	}
	return fmt.Sprintf("ledger: %s (%s): %v", e.Stage, e.Class, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *RunError) Unwrap() error { return e.Err }

func newRunError(class FailureClass, stage string, month MonthKey, err error) *RunError {
	return &RunError{Class: class, Stage: stage, Month: month, Err: err}
}

// ExitCode resolves the process exit status for any run failure.
// Failures outside the taxonomy exit 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Class.ExitCode()
	}
	return 1
}
