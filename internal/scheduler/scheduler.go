package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats describes the most recent run.
type Stats struct {
	Runs      int64
	LastRunAt time.Time
	LastError string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunOnStart controls whether the task runs immediately on Start.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.runOnStart = enabled
	}
}

// WithTaskTimeout bounds each run. It defaults to the interval.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.taskTimeout = d
	}
}

// Scheduler runs a task on a fixed interval. Runs never overlap: the next
// tick is only taken once the previous run has returned.
type Scheduler struct {
	logger      *zap.Logger
	name        string
	interval    time.Duration
	taskTimeout time.Duration
	runOnStart  bool
	taskFunc    func(context.Context) error
	stopCh      chan struct{}
	doneCh      chan struct{}
	isRunning   bool
	stats       Stats
	mu          sync.RWMutex
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *zap.Logger, name string, interval time.Duration, taskFunc func(context.Context) error, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:      logger.With(zap.String("task", name)),
		name:        name,
		interval:    interval,
		taskTimeout: interval,
		runOnStart:  true,
		taskFunc:    taskFunc,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerAlreadyRunning
	}

	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx, s.stopCh, s.doneCh)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.isRunning = false
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.logger.Info("Scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Stats returns a snapshot of run statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer func() {
		s.mu.Lock()
		// A Start after Stop may already own the scheduler.
		if s.stopCh == stopCh {
			s.isRunning = false
		}
		s.mu.Unlock()
	}()

	if s.runOnStart {
		s.executeTask(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled")
			return
		case <-stopCh:
			s.logger.Info("Scheduler stop signal received")
			return
		case <-ticker.C:
			s.executeTask(ctx)
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context) {
	s.logger.Debug("Executing scheduled task")

	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	err := s.taskFunc(taskCtx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRunAt = time.Now()
	s.stats.LastError = ""
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Task execution failed", zap.Error(err))
	} else {
		s.logger.Debug("Task execution completed successfully")
	}
}
