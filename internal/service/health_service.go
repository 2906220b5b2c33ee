package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/repository"
)

// BreakerReporter exposes the carrier circuit breaker for health checks.
type BreakerReporter interface {
	State() carrier.BreakerState
	Counts() (requests, failures uint32)
}

type healthService struct {
	repo             repository.Repository
	redisClient      redis.UniversalClient
	schedulerService SchedulerService
	breaker          BreakerReporter
}

func NewHealthService(
	repo repository.Repository,
	redisClient redis.UniversalClient,
	schedulerService SchedulerService,
	breaker BreakerReporter,
) HealthService {
	return &healthService{
		repo:             repo,
		redisClient:      redisClient,
		schedulerService: schedulerService,
		breaker:          breaker,
	}
}

func (s *healthService) GetHealth() *HealthStatus {
	status := &HealthStatus{
		Status: HealthHealthy,
	}

	if s.schedulerService.IsRunning() {
		status.SchedulerStatus = SchedulerRunning
	} else {
		status.SchedulerStatus = SchedulerStopped
	}

	status.DatabaseStatus = s.checkDatabaseHealth()

	status.RedisStatus = s.checkRedisHealth()

	if s.breaker != nil {
		state := s.breaker.State()
		requests, failures := s.breaker.Counts()
		status.CircuitBreakerState = state
		if requests > 0 {
			failureRate := float64(failures) / float64(requests) * 100
			status.CircuitBreakerStatus = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
		} else {
			status.CircuitBreakerStatus = "No requests yet"
		}

		if state == carrier.BreakerOpen {
			status.Status = HealthDegraded
		}
	}

	if status.DatabaseStatus != ComponentConnected || status.RedisStatus != ComponentConnected {
		status.Status = HealthUnhealthy
	}

	return status
}

func (s *healthService) checkDatabaseHealth() string {
	if err := s.repo.Ping(); err != nil {
		return ComponentDisconnected
	}
	return ComponentConnected
}

func (s *healthService) checkRedisHealth() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return ComponentDisconnected
	}

	return ComponentConnected
}
