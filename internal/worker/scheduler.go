package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
}

// Scheduler runs named jobs on fixed intervals until its context ends.
type Scheduler struct {
	logger     *zap.Logger
	runOnStart bool
	jobs       []job
	wg         sync.WaitGroup
}

// NewScheduler builds a scheduler. With runOnStart every job also runs once
// right after Start.
func NewScheduler(logger *zap.Logger, runOnStart bool) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger.Named("scheduler"), runOnStart: runOnStart}
}

// Every registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) {
	if interval <= 0 {
		s.logger.Warn("job disabled", zap.String("job", name))
		return
	}
	s.jobs = append(s.jobs, job{name: name, interval: interval, fn: fn})
}

// Start launches every job loop.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Wait blocks until every loop returned after the context ended.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()
	if s.runOnStart {
		s.run(ctx, j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.run(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, j job) {
	started := time.Now()
	if err := j.fn(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	s.logger.Debug("job finished", zap.String("job", j.name), zap.Duration("took", time.Since(started)))
}
