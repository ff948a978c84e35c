package tasks

import "context"

// TaskSchedulerInterface defines the interface for ingestion scheduling.
// The main application uses it to run the pipeline either continuously
// (Start/Stop with a worker pool) or as a single synchronous batch cycle.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RunCycle(ctx context.Context) error
}
