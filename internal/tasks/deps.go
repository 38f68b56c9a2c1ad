// Package tasks implements the scheduled background jobs of the inbox:
// database maintenance and the stale-send audit.
package tasks

import (
	"context"
	"log/slog"

	"zapdesk/internal/database"
)

// ScheduledTaskFunc is the signature every scheduled task implements. The
// context comes from the scheduler and must be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps carries the dependencies shared by all scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
}
