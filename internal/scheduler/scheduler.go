// Package scheduler claims sales days and supervises one worker task per
// claimed day.
package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hvnguyen/popmart-registrar/internal/registration"
	"github.com/hvnguyen/popmart-registrar/internal/registry"
	"github.com/hvnguyen/popmart-registrar/internal/worker"
)

// Config controls Scheduler behavior.
type Config struct {
	MaxWorkers int
}

// Scheduler is the supervision layer between a dispatch request and the day
// workers: it claims days atomically through the registry, then runs one
// goroutine per claimed day under a concurrency cap. Dispatch returns as
// soon as the tasks are spawned; results surface through the events hub.
type Scheduler struct {
	registry *registry.Registry
	worker   *worker.Worker
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New constructs a Scheduler.
func New(reg *registry.Registry, w *worker.Worker, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		registry: reg,
		worker:   w,
		sem:      semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		logger:   logger,
	}
}

// Dispatch claims every still-unclaimed day in the assignment and spawns a
// worker task for each. Returns the claimed labels in assignment order;
// already active or completed days are skipped.
func (s *Scheduler) Dispatch(ctx context.Context, batchID string, channelID int64, assignment registration.Assignment) []string {
	claimed := s.registry.Claim(assignment.Order)
	for _, day := range claimed {
		rows := assignment.Rows[day]
		s.wg.Add(1)
		go func(day string, rows []registration.Row) {
			defer s.wg.Done()
			if err := s.sem.Acquire(ctx, 1); err != nil {
				// Never started: give the claim back so a later dispatch can
				// pick the day up again.
				s.registry.Release(day, true)
				s.logger.Warn("day task canceled before start", zap.String("day", day), zap.Error(err))
				return
			}
			defer s.sem.Release(1)
			s.worker.ProcessDay(ctx, batchID, channelID, day, rows)
		}(day, rows)
	}
	s.logger.Info("dispatched batch",
		zap.String("batch_id", batchID),
		zap.Int("days_claimed", len(claimed)),
		zap.Int("days_requested", len(assignment.Order)),
	)
	return claimed
}

// Wait blocks until every spawned day task has finished. Used at shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
