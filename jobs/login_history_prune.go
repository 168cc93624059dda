package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginHistoryPruneJob removes users_device rows older than the
// retention window so the history table stays bounded.
type LoginHistoryPruneJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLoginHistoryPruneJob initialises the prune handler.
func NewLoginHistoryPruneJob(pool *pgxpool.Pool, logger *slog.Logger) *LoginHistoryPruneJob {
	return &LoginHistoryPruneJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the prune.
func (j *LoginHistoryPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("login history prune: handler not configured")
	}
	var payload LoginHistoryPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 24 * 90
	}

	cutoff := j.clock().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	tag, err := j.Pool.Exec(ctx, `DELETE FROM users_device WHERE created_at < $1`, cutoff)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("prune login history", slog.Any("error", err))
		}
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("pruned login history",
			slog.Int64("rows", tag.RowsAffected()),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
