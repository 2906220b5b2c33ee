package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/models"
)

// SendResult describes an accepted dispatch.
type SendResult struct {
	MessageID        uuid.UUID `json:"message_id"`
	CarrierMessageID string    `json:"carrier_message_id"`
	Status           string    `json:"status"`
	SMSSentThisMonth int       `json:"sms_sent_this_month"`
	MonthlyLimit     int       `json:"monthly_limit"`
	RequestCount     int       `json:"request_count"`
	// Persisted is false when the carrier accepted the message but storing
	// it failed; such sends need manual reconciliation.
	Persisted bool `json:"persisted"`
}

// SweepSummary counts the outcome of one sweep.
type SweepSummary struct {
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
	SkippedCount int `json:"skipped_count"`
	Total        int `json:"total"`
}

// StatusCallback is one delivery report from the carrier.
type StatusCallback struct {
	CarrierMessageID string
	Status           string
	ErrorCode        string
	ErrorMessage     string
}

// StatusOutcome says what a delivery report did.
type StatusOutcome string

const (
	StatusApplied StatusOutcome = "applied"
	StatusStale   StatusOutcome = "stale"
	StatusUnknown StatusOutcome = "unknown_message"
	StatusIgnored StatusOutcome = "ignored"
)

// InboundMessage is an SMS received from a customer.
type InboundMessage struct {
	From string
	Body string
}

// KeywordAction is the effect of an inbound keyword.
type KeywordAction string

const (
	KeywordNone   KeywordAction = "none"
	KeywordOptOut KeywordAction = "opt_out"
	KeywordOptIn  KeywordAction = "opt_in"
)

// InboundResult describes the effect of an inbound message.
type InboundResult struct {
	Action  KeywordAction
	Matched int64
}

// CustomerInput is the data needed to create a customer.
type CustomerInput struct {
	Name           string
	PhoneRegion    string
	PhoneLocal     string
	JobDescription string
	// ScheduledSendAt, when set, queues the customer for the sweep.
	ScheduledSendAt *time.Time
}

// ListParams pages and filters customer listings. Page is 1-based.
type ListParams struct {
	State  models.DeliveryState
	Search string
	Page   int
	Limit  int
}

// CustomerList is one page of customers.
type CustomerList struct {
	Customers  []*models.Customer
	Pagination Pagination
}

type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

// AccountSettings are the user-editable SMS settings.
type AccountSettings struct {
	BusinessName     string
	ReviewLinks      models.ReviewLinks
	SMSTemplate      string
	IncludeNameInSMS bool
	IncludeJobInSMS  bool
}

// AccountView is an account with its derived monthly allowance.
type AccountView struct {
	*models.Account
	MonthlyLimit int
}

type HealthStatus struct {
	Status               string               `json:"status"`
	SchedulerStatus      string               `json:"scheduler_status"`
	DatabaseStatus       string               `json:"database_status"`
	RedisStatus          string               `json:"redis_status"`
	CircuitBreakerStatus string               `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  carrier.BreakerState `json:"circuit_breaker_state,omitempty"`
}

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"

	ComponentConnected    = "connected"
	ComponentDisconnected = "disconnected"

	SchedulerRunning = "running"
	SchedulerStopped = "stopped"
)
