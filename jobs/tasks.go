package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceRebuild recomputes the monthly balance report for the full window.
	TaskBalanceRebuild = "ledger:rebuild_monthly"
)

// BalanceRebuildPayload identifies a single rebuild request.
type BalanceRebuildPayload struct {
	RunID       string `json:"run_id"`
	RequestedBy string `json:"requested_by,omitempty"`
	Trigger     string `json:"trigger"`
}

// NewBalanceRebuildTask constructs an Asynq task for the balance rebuild.
func NewBalanceRebuildTask(payload BalanceRebuildPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceRebuild, body, asynq.Queue(QueueDefault)), nil
}
