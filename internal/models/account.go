package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// AccessStatus is the billing provider's view of an account.
type AccessStatus string

const (
	AccessStatusActive   AccessStatus = "active"
	AccessStatusInactive AccessStatus = "inactive"
	AccessStatusPastDue  AccessStatus = "past_due"
	AccessStatusCanceled AccessStatus = "canceled"
)

// MaxReviewLinks bounds Account.ReviewLinks.
const MaxReviewLinks = 5

// ReviewLink is a named review destination shown in the SMS.
type ReviewLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ReviewLinks is stored as a JSONB array preserving order.
type ReviewLinks []ReviewLink

// Scan implements sql.Scanner.
func (l *ReviewLinks) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported review_links type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Value implements driver.Valuer.
func (l ReviewLinks) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Account is the subset of the user record the dispatch pipeline needs.
type Account struct {
	ID                uuid.UUID      `db:"id"`
	Email             sql.NullString `db:"email"`
	BusinessName      string         `db:"business_name"`
	ReviewLinks       ReviewLinks    `db:"review_links"`
	SMSTemplate       string         `db:"sms_template"`
	IncludeNameInSMS  bool           `db:"include_name_in_sms"`
	IncludeJobInSMS   bool           `db:"include_job_in_sms"`
	SMSSentThisMonth  int            `db:"sms_sent_this_month"`
	Plan              Plan           `db:"plan"`
	AccessStatus      AccessStatus   `db:"access_status"`
	BillingCustomerID sql.NullString `db:"billing_customer_id"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// Reservation is the counter state after a quota slot was taken.
type Reservation struct {
	SMSSentThisMonth int
	RequestCount     int
}
