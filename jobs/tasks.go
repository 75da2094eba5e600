package jobs

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionCleanup removes expired login sessions from the database.
	TaskSessionCleanup = "maintenance:session_cleanup"
	// TaskAuditPrune trims audit log rows past the retention window.
	TaskAuditPrune = "maintenance:audit_prune"
)

// AuditPrunePayload carries the retention horizon for audit pruning.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewSessionCleanupTask constructs the session cleanup task.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskSessionCleanup, nil)
}

// NewAuditPruneTask constructs an audit prune task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// SessionPruner deletes login session audit rows past their expiry.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupHandler deletes login sessions whose expiry has passed.
func SessionCleanupHandler(sessions SessionPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		deleted, err := sessions.DeleteExpiredSessions(ctx, time.Now())
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("session cleanup", slog.Int64("deleted", deleted))
		}
		return nil
	}
}

// AuditPruneHandler trims audit_logs rows older than the retention window.
func AuditPruneHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionDays <= 0 {
			payload.RetentionDays = 90
		}
		cutoff := time.Now().AddDate(0, 0, -payload.RetentionDays)
		tag, err := pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("audit prune",
				slog.Int64("deleted", tag.RowsAffected()),
				slog.Time("cutoff", cutoff))
		}
		return nil
	}
}
