package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/review-sms/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/repository_mock.go -package=mocks

var (
	ErrNotFound = errors.New("record not found")

	// Reservation denials, returned by DispatchRepository.Reserve.
	ErrMonthlyLimitReached = errors.New("monthly limit reached")
	ErrCustomerCapReached  = errors.New("customer cap reached")
	ErrCustomerOptedOut    = errors.New("customer opted out")
)

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	Account() AccountRepository
	Customer() CustomerRepository
	Message() MessageRepository
	Dispatch() DispatchRepository
}

// AccountRepository reads and maintains user accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Upsert(ctx context.Context, acct *models.Account) error
	GetAccessStatus(ctx context.Context, userID uuid.UUID) (models.AccessStatus, error)
	// UpdateBilling sets access status, and plan when non-empty, of the
	// account linked to billingCustomerID. It reports whether one matched.
	UpdateBilling(ctx context.Context, billingCustomerID string, status models.AccessStatus, plan models.Plan) (bool, error)
	ResetMonthlyCounters(ctx context.Context) (int64, error)
}

// CustomerRepository manages customers and their delivery state.
type CustomerRepository interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, filter models.CustomerFilter) ([]*models.Customer, int, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Schedule(ctx context.Context, userID, id uuid.UUID, at time.Time) error
	SetOptedOut(ctx context.Context, ids []uuid.UUID, optedOut bool) (int64, error)
	// ListPhones pages through customer phones ordered by id, starting after
	// the given id. A zero userID lists every account.
	ListPhones(ctx context.Context, userID uuid.UUID, after uuid.UUID, limit int) ([]*models.CustomerPhone, error)
	// ListDue returns scheduled customers whose send time has passed, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Customer, error)
	// BeginSend moves a due scheduled customer to sending. It reports false
	// when the customer is no longer scheduled or not yet due.
	BeginSend(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// ReturnToSchedule moves a sending customer back to scheduled.
	ReturnToSchedule(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkFailed moves a customer in state from to failed. It reports
	// whether the customer was in that state.
	MarkFailed(ctx context.Context, id uuid.UUID, from models.DeliveryState) (bool, error)
	// RecordSweepFailure counts one failed attempt for a sending customer.
	// The customer returns to scheduled, or is marked failed once
	// maxAttempts is reached.
	RecordSweepFailure(ctx context.Context, id uuid.UUID, maxAttempts int) (attempts int, failed bool, err error)
}

// MessageRepository reads and reconciles sent messages.
type MessageRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetByCarrierID(ctx context.Context, carrierID string) (*models.Message, error)
	ListByCustomer(ctx context.Context, userID, customerID uuid.UUID, offset, limit int) ([]*models.Message, error)
	// UpdateDeliveryStatus applies update only while the stored status is
	// still prev. It reports whether the row changed.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, prev *models.DeliveryStatus, update models.DeliveryUpdate) (bool, error)
}

// DispatchRepository holds the transactional steps of a dispatch.
type DispatchRepository interface {
	// Reserve takes one monthly slot and one customer request atomically.
	Reserve(ctx context.Context, userID, customerID uuid.UUID, monthlyLimit, customerCap int) (*models.Reservation, error)
	// Release returns a slot taken by Reserve.
	Release(ctx context.Context, userID, customerID uuid.UUID) error
	// RecordSent stores msg and moves its customer to sent.
	RecordSent(ctx context.Context, msg *models.Message) error
}
