// Package jobs defines background tasks executed by the asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLoginHistoryPrune removes login-history rows past retention.
	TaskLoginHistoryPrune = "auth:login_history_prune"
)

// LoginHistoryPrunePayload configures a prune run.
type LoginHistoryPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewLoginHistoryPruneTask constructs an Asynq task.
func NewLoginHistoryPruneTask(payload LoginHistoryPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLoginHistoryPrune, data), nil
}
