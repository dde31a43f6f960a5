package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one scheduled unit of work, normally a full scrape run.
type Job func(ctx context.Context) error

// Scheduler runs a job at a fixed interval. Runs never overlap: ticks that
// arrive while a job is still running are dropped.
type Scheduler struct {
	job      Job
	interval time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	runs int
	last error
}

// NewScheduler creates a scheduler for job. The first run starts as soon as
// the scheduler does.
func NewScheduler(job Job, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		job:      job,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the loop in a goroutine until ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.run()
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start(ctx)
	<-s.done
}

// Stop cancels the loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.logger.Info("scheduler stopped")
	})
}

// Runs reports how many jobs have finished and the error of the latest one.
func (s *Scheduler) Runs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.last
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.runJob()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runJob()
		}
	}
}

func (s *Scheduler) runJob() {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := s.job(s.ctx)

	s.mu.Lock()
	s.runs++
	s.last = err
	n := s.runs
	s.mu.Unlock()

	log := s.logger.With(zap.Int("run", n), zap.Duration("took", time.Since(start)))
	if err != nil {
		log.Error("scheduled run failed", zap.Error(err))
		return
	}
	log.Info("scheduled run finished", zap.Time("next", time.Now().Add(s.interval)))
}
