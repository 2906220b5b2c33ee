package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/review-sms/internal/auth"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/scheduler"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/service_mock.go -package=mocks

// DispatchService sends one review request.
type DispatchService interface {
	Send(ctx context.Context, userID, customerID uuid.UUID, consentConfirmed bool) (*SendResult, error)
}

// SweepService dispatches scheduled customers that are due.
type SweepService interface {
	Run(ctx context.Context) (*SweepSummary, error)
	ResetMonthlyCounters(ctx context.Context) (int64, error)
}

// WebhookService reconciles carrier callbacks.
type WebhookService interface {
	HandleStatus(ctx context.Context, cb StatusCallback) (StatusOutcome, error)
	HandleInbound(ctx context.Context, msg InboundMessage) (*InboundResult, error)
}

// CustomerService manages a user's customers.
type CustomerService interface {
	Create(ctx context.Context, userID uuid.UUID, in CustomerInput) (*models.Customer, error)
	List(ctx context.Context, userID uuid.UUID, params ListParams) (*CustomerList, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Customer, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Schedule(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.Customer, error)
	Unsubscribe(ctx context.Context, userID, id uuid.UUID) (*models.Customer, error)
	Messages(ctx context.Context, userID, id uuid.UUID, page, limit int) ([]*models.Message, error)
}

// AccountService reads and edits the caller's SMS settings.
type AccountService interface {
	Get(ctx context.Context, userID uuid.UUID) (*AccountView, error)
	UpdateSettings(ctx context.Context, identity *auth.Identity, settings AccountSettings) (*AccountView, error)
}

type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
	Stats() scheduler.Stats
}

type HealthService interface {
	GetHealth() *HealthStatus
}
