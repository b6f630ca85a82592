package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPrune removes expired session audit rows.
	TaskSessionsPrune = "sessions:prune"
	// TaskAuthzWarmup pre-populates the authorization snapshot cache so the
	// first request after an invalidation does not pay the registry read.
	TaskAuthzWarmup = "authz:warmup"
)

// SessionsPrunePayload parameterizes the prune task.
type SessionsPrunePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewSessionsPruneTask constructs an Asynq task.
func NewSessionsPruneTask(payload SessionsPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPrune, data), nil
}

// NewAuthzWarmupTask constructs an Asynq task with an empty payload.
func NewAuthzWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskAuthzWarmup, nil), nil
}
