package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groceryroute/flyer-comb/app/database"
)

// ExpireFlyersTask deletes flyers whose validity date has passed in the
// configured timezone. Their products go with them through the cascade.
type ExpireFlyersTask struct {
	Task
	flyerRepo database.FlyerRepository
}

func NewExpireFlyersTask(flyerRepo database.FlyerRepository) *ExpireFlyersTask {
	return &ExpireFlyersTask{
		Task:      NewTask(TaskTypeExpireFlyers, "all"),
		flyerRepo: flyerRepo,
	}
}

func (t *ExpireFlyersTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := time.Now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	deleted, err := t.flyerRepo.DeleteExpired(today)
	if err != nil {
		slog.Error("Task failed", "type", "ExpireFlyers", "error", err)
		return fmt.Errorf("failed to delete expired flyers: %w", err)
	}

	slog.Info("Task completed",
		"type", "ExpireFlyers",
		"duration", t.GetDuration(),
		"deleted", deleted)

	return nil
}
