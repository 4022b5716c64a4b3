package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pressroom/pressroom/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditPrune deletes audit entries past the retention window.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload carries the retention window in hours.
type AuditPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditPruneTask constructs the periodic prune task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		return nil, fmt.Errorf("audit prune: retention %s is shorter than an hour", retention)
	}
	data, err := json.Marshal(AuditPrunePayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data, asynq.Queue(QueueDefault)), nil
}

// AuditPruner removes audit rows older than the given age.
type AuditPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditPruneJob handles TaskAuditPrune.
type AuditPruneJob struct {
	Pruner  AuditPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditPruneJob wires dependencies for the prune handler.
func NewAuditPruneJob(pruner AuditPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPruneJob {
	return &AuditPruneJob{Pruner: pruner, Logger: logger, Metrics: metrics}
}

// Handle processes audit prune tasks.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Pruner == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionHours <= 0 {
		return fmt.Errorf("audit prune: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskAuditPrune)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("retention_hours", payload.RetentionHours))
	removed, err := j.Pruner.Prune(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		logger.Error("prune audit logs", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskAuditPrune, removed)
	logger.Info("pruned audit logs", slog.Int64("removed", removed))
	return nil
}

func (j *AuditPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
