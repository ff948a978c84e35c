package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groceryroute/flyer-comb/app/cfg"
	"github.com/groceryroute/flyer-comb/app/config"
	"github.com/groceryroute/flyer-comb/app/database"
	"github.com/groceryroute/flyer-comb/app/flyer"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler drives ingestion cycles. Each cycle expires stale flyers,
// discovers new ones per site profile, and processes every pending flyer.
// In continuous mode a ticker enqueues cycle tasks onto a bounded worker
// pool; RunCycle performs one cycle synchronously for batch invocation.
type Scheduler struct {
	profiles   map[string]*config.Profile
	fetcher    flyer.PageFetcher
	flyerRepo  database.FlyerRepository
	parsers    map[string]*flyer.Parser
	extractors map[string]*flyer.FlyerExtractor

	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(profiles map[string]*config.Profile, fetcher flyer.PageFetcher,
	flyerRepo database.FlyerRepository, parsers map[string]*flyer.Parser,
	extractors map[string]*flyer.FlyerExtractor) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		profiles:    profiles,
		fetcher:     fetcher,
		flyerRepo:   flyerRepo,
		parsers:     parsers,
		extractors:  extractors,
		interval:    time.Duration(cfg.CycleMinutes) * time.Minute,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueCycleTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueCycleTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunCycle executes one full ingestion cycle synchronously: expire,
// discover per profile, then process every pending flyer in order.
// Individual task failures are contained; only a pending-list failure
// (nothing left to do without it) is fatal to the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	expire := NewExpireFlyersTask(s.flyerRepo)
	expire.Start()
	if err := expire.Execute(ctx); err != nil {
		slog.Warn("Expiry sweep failed, continuing cycle", "error", err)
	}

	for name, profile := range s.profiles {
		if !profile.Settings.Enabled {
			slog.Debug("Profile disabled, skipping discovery", "profile", name)
			continue
		}

		discover := NewDiscoverFlyersTask(profile, s.fetcher, s.parsers[name], s.flyerRepo)
		discover.Start()
		if err := discover.Execute(ctx); err != nil {
			slog.Warn("Discovery failed, continuing cycle", "profile", name, "error", err)
		}
	}

	pending, err := s.flyerRepo.ListPendingFlyers()
	if err != nil {
		return fmt.Errorf("failed to list pending flyers: %w", err)
	}

	processed := 0
	deferred := 0

	for _, record := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		extractor, ok := s.extractors[record.Profile]
		if !ok {
			slog.Warn("No extractor for flyer's profile, skipping", "flyer", record.FlyerID, "profile", record.Profile)
			deferred++
			continue
		}

		task := NewProcessFlyerTask(record, extractor, s.flyerRepo)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			deferred++
			continue
		}
		processed++
	}

	slog.Info("Ingestion cycle finished",
		"pending", len(pending),
		"processed", processed,
		"deferred", deferred)

	return nil
}

func (s *Scheduler) enqueueCycleTasks() {
	if err := s.EnqueueTask(NewExpireFlyersTask(s.flyerRepo)); err != nil {
		slog.Warn("Failed to enqueue ExpireFlyersTask", "error", err)
	}

	for name, profile := range s.profiles {
		if !profile.Settings.Enabled {
			slog.Debug("Profile disabled, skipping", "profile", name)
			continue
		}

		discover := NewDiscoverFlyersTask(profile, s.fetcher, s.parsers[name], s.flyerRepo)
		if err := s.EnqueueTask(discover); err != nil {
			slog.Warn("Failed to enqueue DiscoverFlyersTask", "profile", name, "error", err)
		}
	}

	pending, err := s.flyerRepo.ListPendingFlyers()
	if err != nil {
		slog.Warn("Failed to list pending flyers", "error", err)
		return
	}

	for _, record := range pending {
		extractor, ok := s.extractors[record.Profile]
		if !ok {
			slog.Warn("No extractor for flyer's profile, skipping", "flyer", record.FlyerID, "profile", record.Profile)
			continue
		}

		task := NewProcessFlyerTask(record, extractor, s.flyerRepo)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue ProcessFlyerTask", "flyer", record.FlyerID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 30*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		}
	}
}
