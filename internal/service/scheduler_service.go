package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/config"
	"github.com/popeskul/review-sms/internal/scheduler"
)

type schedulerService struct {
	scheduler *scheduler.Scheduler
	sweep     SweepService
	logger    *zap.Logger
}

func NewSchedulerService(
	cfg *config.Config,
	sweep SweepService,
	logger *zap.Logger,
) SchedulerService {
	svc := &schedulerService{
		sweep:  sweep,
		logger: logger,
	}

	svc.scheduler = scheduler.NewScheduler(logger, "sweep", cfg.Scheduler.Interval(), svc.executeSweep)
	return svc
}

func (s *schedulerService) Start() error {
	return s.scheduler.Start(context.Background())
}

func (s *schedulerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}

func (s *schedulerService) Stats() scheduler.Stats {
	return s.scheduler.Stats()
}

func (s *schedulerService) executeSweep(ctx context.Context) error {
	_, err := s.sweep.Run(ctx)
	return err
}
