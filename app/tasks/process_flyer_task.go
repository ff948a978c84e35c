package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groceryroute/flyer-comb/app/database"
	"github.com/groceryroute/flyer-comb/app/flyer"
)

// ProcessFlyerTask runs the flyer extractor on one pending flyer and marks
// it retrieved on success. The task itself does not retry: a failed flyer
// stays pending and is picked up again on the next cycle, and product
// inserts are conflict-ignored so the revisit is safe.
type ProcessFlyerTask struct {
	Task
	flyer     database.Flyer
	extractor *flyer.FlyerExtractor
	flyerRepo database.FlyerRepository
}

func NewProcessFlyerTask(record database.Flyer, extractor *flyer.FlyerExtractor,
	flyerRepo database.FlyerRepository) *ProcessFlyerTask {
	task := NewTask(TaskTypeProcessFlyer, fmt.Sprintf("%d", record.FlyerID))
	task.MaxRetries = 0

	return &ProcessFlyerTask{
		Task:      task,
		flyer:     record,
		extractor: extractor,
		flyerRepo: flyerRepo,
	}
}

func (t *ProcessFlyerTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	count, err := t.extractor.Run(ctx, t.flyer)
	if err != nil {
		slog.Error("Task failed, flyer stays pending",
			"type", "ProcessFlyer", "flyer", t.flyer.FlyerID, "error", err)
		return fmt.Errorf("failed to extract flyer %d: %w", t.flyer.FlyerID, err)
	}

	if err := t.flyerRepo.MarkRetrieved(t.flyer.FlyerID); err != nil {
		slog.Error("Task failed, flyer stays pending",
			"type", "ProcessFlyer", "flyer", t.flyer.FlyerID, "error", err)
		return fmt.Errorf("failed to mark flyer %d retrieved: %w", t.flyer.FlyerID, err)
	}

	slog.Info("Task completed",
		"type", "ProcessFlyer",
		"flyer", t.flyer.FlyerID,
		"duration", t.GetDuration(),
		"persisted", count)

	return nil
}
