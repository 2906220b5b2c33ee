package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeliveryState tracks where a customer is in the review-request flow.
type DeliveryState string

const (
	DeliveryStatePending   DeliveryState = "pending"
	DeliveryStateScheduled DeliveryState = "scheduled"
	// DeliveryStateSending marks a scheduled customer claimed by a sweep.
	DeliveryStateSending DeliveryState = "sending"
	DeliveryStateSent    DeliveryState = "sent"
	DeliveryStateFailed  DeliveryState = "failed"
)

func (s DeliveryState) Valid() bool {
	switch s {
	case DeliveryStatePending, DeliveryStateScheduled, DeliveryStateSending, DeliveryStateSent, DeliveryStateFailed:
		return true
	}
	return false
}

// MaxJobDescriptionLength bounds Customer.JobDescription in characters.
const MaxJobDescriptionLength = 250

// Customer is a recipient of review requests. The phone is stored exactly as
// typed; its canonical form is computed when needed.
type Customer struct {
	ID              uuid.UUID      `db:"id"`
	UserID          uuid.UUID      `db:"user_id"`
	Name            string         `db:"name"`
	PhoneRegion     string         `db:"phone_region"`
	PhoneLocal      string         `db:"phone_local"`
	JobDescription  sql.NullString `db:"job_description"`
	DeliveryState   DeliveryState  `db:"delivery_state"`
	ScheduledSendAt sql.NullTime   `db:"scheduled_send_at"`
	SentAt          sql.NullTime   `db:"sent_at"`
	RequestCount    int            `db:"request_count"`
	OptedOut        bool           `db:"opted_out"`
	SweepAttempts   int            `db:"sweep_attempts"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// CustomerPhone is the projection used when matching inbound senders.
type CustomerPhone struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	PhoneRegion string    `db:"phone_region"`
	PhoneLocal  string    `db:"phone_local"`
}

// CustomerFilter narrows customer listings.
type CustomerFilter struct {
	UserID uuid.UUID
	State  DeliveryState
	Search string
	Offset int
	Limit  int
}
