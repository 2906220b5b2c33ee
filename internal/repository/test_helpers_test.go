package repository_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/review-sms/internal/models"
)

type userOpts struct {
	sent         int
	plan         models.Plan
	access       models.AccessStatus
	billingCusID string
}

func insertTestUser(t *testing.T, db *sqlx.DB, opts userOpts) uuid.UUID {
	t.Helper()
	if opts.plan == "" {
		opts.plan = models.PlanStarter
	}
	if opts.access == "" {
		opts.access = models.AccessStatusActive
	}

	id := uuid.New()
	var billing sql.NullString
	if opts.billingCusID != "" {
		billing = sql.NullString{String: opts.billingCusID, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO users (id, business_name, review_links, sms_template, sms_sent_this_month, plan, access_status, billing_customer_id)
		VALUES ($1, 'Acme Plumbing', '[{"name":"Google","url":"https://g.page/acme"}]', 'Thanks from {businessName}!', $2, $3, $4, $5)`,
		id, opts.sent, opts.plan, opts.access, billing)
	require.NoError(t, err)

	return id
}

type customerOpts struct {
	name         string
	region       string
	local        string
	state        models.DeliveryState
	scheduledAt  *time.Time
	requestCount int
	optedOut     bool
	createdAt    time.Time
}

func insertTestCustomer(t *testing.T, db *sqlx.DB, userID uuid.UUID, opts customerOpts) uuid.UUID {
	t.Helper()
	if opts.name == "" {
		opts.name = "Jane Doe"
	}
	if opts.region == "" {
		opts.region = "GB"
	}
	if opts.local == "" {
		opts.local = "07400123456"
	}
	if opts.state == "" {
		opts.state = models.DeliveryStatePending
	}
	if opts.createdAt.IsZero() {
		opts.createdAt = time.Now()
	}

	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO customers (id, user_id, name, phone_region, phone_local, delivery_state, scheduled_send_at,
		                       request_count, opted_out, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		id, userID, opts.name, opts.region, opts.local, opts.state, opts.scheduledAt,
		opts.requestCount, opts.optedOut, opts.createdAt)
	require.NoError(t, err)

	return id
}

func insertTestMessage(t *testing.T, db *sqlx.DB, userID, customerID uuid.UUID, carrierID string, status *models.DeliveryStatus, sentAt time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO messages (id, customer_id, user_id, body, sent_at, carrier_message_id, delivery_status)
		VALUES ($1, $2, $3, 'hello', $4, $5, $6)`,
		id, customerID, userID, sentAt, carrierID, status)
	require.NoError(t, err)

	return id
}

func statusPtr(s models.DeliveryStatus) *models.DeliveryStatus {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
