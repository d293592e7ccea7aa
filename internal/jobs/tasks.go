package jobs

import (
	"context"
	"log/slog"

	"github.com/edgard/slackqa/internal/config"
)

// TaskFunc is the signature of a scheduled task. The context is cancelled
// when the scheduler shuts down.
type TaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the scheduled tasks keyed by the names used in the
// scheduler.tasks configuration section.
func RegisterAllTasks(c *Coordinator, logger *slog.Logger) map[string]TaskFunc {
	tasks := map[string]TaskFunc{
		config.TaskWeeklyRefresh: func(ctx context.Context) error {
			_, err := c.Refresh(ctx)
			return err
		},
		config.TaskSQLMaintenance: c.Maintenance,
	}
	if logger != nil {
		logger.Info("Initialized scheduled tasks", "count", len(tasks))
	}
	return tasks
}
