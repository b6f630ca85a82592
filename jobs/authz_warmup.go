package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tekni-portal/tekni-portal/internal/authz"
)

// AuthzWarmupJob forces a snapshot load so the cache entry for the current
// version exists before user traffic needs it.
type AuthzWarmupJob struct {
	loader *authz.SnapshotLoader
	logger *slog.Logger
}

// NewAuthzWarmupJob constructs the job.
func NewAuthzWarmupJob(loader *authz.SnapshotLoader, logger *slog.Logger) *AuthzWarmupJob {
	return &AuthzWarmupJob{loader: loader, logger: logger}
}

// Handle processes TaskAuthzWarmup tasks.
func (j *AuthzWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	snap, err := j.loader.Snapshot(ctx)
	if err != nil {
		j.logger.Error("authz warmup", slog.Any("error", err))
		return err
	}
	j.logger.Info("authz snapshot warmed", slog.Int("pages", len(snap.Pages)), slog.Int("roles", len(snap.Roles)))
	return nil
}
