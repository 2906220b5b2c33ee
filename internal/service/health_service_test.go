package service_test

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/repository/mocks"
	"github.com/popeskul/review-sms/internal/service"
	servicemocks "github.com/popeskul/review-sms/internal/service/mocks"
)

type fakeBreaker struct {
	state    carrier.BreakerState
	requests uint32
	failures uint32
}

func (b fakeBreaker) State() carrier.BreakerState { return b.state }
func (b fakeBreaker) Counts() (uint32, uint32)    { return b.requests, b.failures }

func connectedRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func disconnectedRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:9999"})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestHealthService_GetHealth(t *testing.T) {
	tests := []struct {
		name                    string
		redisUp                 bool
		setupMocks              func(*mocks.MockRepository, *servicemocks.MockSchedulerService)
		breaker                 fakeBreaker
		expectedStatus          string
		expectedSchedulerStatus string
		expectedDatabaseStatus  string
		expectedRedisStatus     string
	}{
		{
			name:    "all components healthy",
			redisUp: true,
			setupMocks: func(repo *mocks.MockRepository, scheduler *servicemocks.MockSchedulerService) {
				scheduler.EXPECT().IsRunning().Return(true)
				repo.EXPECT().Ping().Return(nil)
			},
			breaker:                 fakeBreaker{state: carrier.BreakerClosed, requests: 100, failures: 5},
			expectedStatus:          service.HealthHealthy,
			expectedSchedulerStatus: service.SchedulerRunning,
			expectedDatabaseStatus:  service.ComponentConnected,
			expectedRedisStatus:     service.ComponentConnected,
		},
		{
			name:    "redis disconnected",
			redisUp: false,
			setupMocks: func(repo *mocks.MockRepository, scheduler *servicemocks.MockSchedulerService) {
				scheduler.EXPECT().IsRunning().Return(false)
				repo.EXPECT().Ping().Return(nil)
			},
			breaker:                 fakeBreaker{state: carrier.BreakerClosed},
			expectedStatus:          service.HealthUnhealthy,
			expectedSchedulerStatus: service.SchedulerStopped,
			expectedDatabaseStatus:  service.ComponentConnected,
			expectedRedisStatus:     service.ComponentDisconnected,
		},
		{
			name:    "database disconnected",
			redisUp: true,
			setupMocks: func(repo *mocks.MockRepository, scheduler *servicemocks.MockSchedulerService) {
				scheduler.EXPECT().IsRunning().Return(true)
				repo.EXPECT().Ping().Return(errors.New("connection failed"))
			},
			breaker:                 fakeBreaker{state: carrier.BreakerClosed},
			expectedStatus:          service.HealthUnhealthy,
			expectedSchedulerStatus: service.SchedulerRunning,
			expectedDatabaseStatus:  service.ComponentDisconnected,
			expectedRedisStatus:     service.ComponentConnected,
		},
		{
			name:    "circuit breaker open",
			redisUp: true,
			setupMocks: func(repo *mocks.MockRepository, scheduler *servicemocks.MockSchedulerService) {
				scheduler.EXPECT().IsRunning().Return(true)
				repo.EXPECT().Ping().Return(nil)
			},
			breaker:                 fakeBreaker{state: carrier.BreakerOpen, requests: 100, failures: 60},
			expectedStatus:          service.HealthDegraded,
			expectedSchedulerStatus: service.SchedulerRunning,
			expectedDatabaseStatus:  service.ComponentConnected,
			expectedRedisStatus:     service.ComponentConnected,
		},
		{
			name:    "storage failure outranks open breaker",
			redisUp: true,
			setupMocks: func(repo *mocks.MockRepository, scheduler *servicemocks.MockSchedulerService) {
				scheduler.EXPECT().IsRunning().Return(false)
				repo.EXPECT().Ping().Return(errors.New("db error"))
			},
			breaker:                 fakeBreaker{state: carrier.BreakerOpen, requests: 1000, failures: 999},
			expectedStatus:          service.HealthUnhealthy,
			expectedSchedulerStatus: service.SchedulerStopped,
			expectedDatabaseStatus:  service.ComponentDisconnected,
			expectedRedisStatus:     service.ComponentConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockRepo := mocks.NewMockRepository(ctrl)
			mockScheduler := servicemocks.NewMockSchedulerService(ctrl)
			tt.setupMocks(mockRepo, mockScheduler)

			redisClient := disconnectedRedis(t)
			if tt.redisUp {
				redisClient = connectedRedis(t)
			}

			healthService := service.NewHealthService(mockRepo, redisClient, mockScheduler, tt.breaker)
			status := healthService.GetHealth()

			require.NotNil(t, status)
			assert.Equal(t, tt.expectedStatus, status.Status)
			assert.Equal(t, tt.expectedSchedulerStatus, status.SchedulerStatus)
			assert.Equal(t, tt.expectedDatabaseStatus, status.DatabaseStatus)
			assert.Equal(t, tt.expectedRedisStatus, status.RedisStatus)
			assert.Equal(t, tt.breaker.state, status.CircuitBreakerState)
		})
	}
}

func TestHealthService_CircuitBreakerStatusFormatting(t *testing.T) {
	tests := []struct {
		name             string
		requests         uint32
		failures         uint32
		expectedCBStatus string
	}{
		{"no requests", 0, 0, "No requests yet"},
		{"all successful", 100, 0, "Requests: 100, Failures: 0 (0.0%)"},
		{"some failures", 100, 25, "Requests: 100, Failures: 25 (25.0%)"},
		{"all failures", 50, 50, "Requests: 50, Failures: 50 (100.0%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockRepo := mocks.NewMockRepository(ctrl)
			mockScheduler := servicemocks.NewMockSchedulerService(ctrl)
			mockScheduler.EXPECT().IsRunning().Return(true)
			mockRepo.EXPECT().Ping().Return(nil)

			breaker := fakeBreaker{state: carrier.BreakerClosed, requests: tt.requests, failures: tt.failures}
			healthService := service.NewHealthService(mockRepo, connectedRedis(t), mockScheduler, breaker)

			status := healthService.GetHealth()
			assert.Equal(t, tt.expectedCBStatus, status.CircuitBreakerStatus)
		})
	}
}

func TestHealthService_WithoutBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := mocks.NewMockRepository(ctrl)
	mockScheduler := servicemocks.NewMockSchedulerService(ctrl)
	mockScheduler.EXPECT().IsRunning().Return(true)
	mockRepo.EXPECT().Ping().Return(nil)

	healthService := service.NewHealthService(mockRepo, connectedRedis(t), mockScheduler, nil)
	status := healthService.GetHealth()

	assert.Equal(t, service.HealthHealthy, status.Status)
	assert.Empty(t, status.CircuitBreakerStatus)
	assert.Empty(t, status.CircuitBreakerState)
}
