package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// SessionPruner is the slice of the auth service the prune job needs.
type SessionPruner interface {
	PruneSessions(ctx context.Context) (int64, error)
}

// SessionsPruneJob deletes session audit rows whose expiry passed. The
// live Redis sessions expire on their own; this keeps the postgres trail
// from growing without bound.
type SessionsPruneJob struct {
	pruner SessionPruner
	logger *slog.Logger
}

// NewSessionsPruneJob constructs the job.
func NewSessionsPruneJob(pruner SessionPruner, logger *slog.Logger) *SessionsPruneJob {
	return &SessionsPruneJob{pruner: pruner, logger: logger}
}

// Handle processes TaskSessionsPrune tasks.
func (j *SessionsPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionsPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	removed, err := j.pruner.PruneSessions(ctx)
	if err != nil {
		j.logger.Error("prune sessions", slog.Any("error", err))
		return err
	}
	j.logger.Info("pruned sessions", slog.Int64("removed", removed), slog.String("reason", payload.Reason))
	return nil
}
