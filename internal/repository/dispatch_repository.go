package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/popeskul/review-sms/internal/models"
)

type dispatchRepository struct {
	db *sqlx.DB
}

func NewDispatchRepository(db *sqlx.DB) DispatchRepository {
	return &dispatchRepository{db: db}
}

// Reserve increments both counters only while each is below its bound, so
// concurrent dispatches can never overshoot. When a bound is hit the whole
// reservation is rolled back and the matching denial error returned.
func (r *dispatchRepository) Reserve(ctx context.Context, userID, customerID uuid.UUID, monthlyLimit, customerCap int) (*models.Reservation, error) {
	var res models.Reservation

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &res.SMSSentThisMonth, `
			UPDATE users
			SET sms_sent_this_month = sms_sent_this_month + 1, updated_at = NOW()
			WHERE id = $1 AND sms_sent_this_month < $2
			RETURNING sms_sent_this_month`, userID, monthlyLimit)
		if errors.Is(err, sql.ErrNoRows) {
			return accountDenial(ctx, tx, userID)
		}
		if err != nil {
			return fmt.Errorf("failed to reserve monthly slot: %w", err)
		}

		err = tx.GetContext(ctx, &res.RequestCount, `
			UPDATE customers
			SET request_count = request_count + 1, updated_at = NOW()
			WHERE id = $1 AND user_id = $2 AND request_count < $3 AND NOT opted_out
			RETURNING request_count`, customerID, userID, customerCap)
		if errors.Is(err, sql.ErrNoRows) {
			return customerDenial(ctx, tx, userID, customerID)
		}
		if err != nil {
			return fmt.Errorf("failed to reserve customer request: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

func accountDenial(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrMonthlyLimitReached
}

func customerDenial(ctx context.Context, tx *sqlx.Tx, userID, customerID uuid.UUID) error {
	var row struct {
		OptedOut bool `db:"opted_out"`
	}
	err := tx.GetContext(ctx, &row, `SELECT opted_out FROM customers WHERE id = $1 AND user_id = $2`, customerID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check customer: %w", err)
	}
	if row.OptedOut {
		return ErrCustomerOptedOut
	}
	return ErrCustomerCapReached
}

func (r *dispatchRepository) Release(ctx context.Context, userID, customerID uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET sms_sent_this_month = GREATEST(sms_sent_this_month - 1, 0), updated_at = NOW()
			WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("failed to release monthly slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE customers
			SET request_count = GREATEST(request_count - 1, 0), updated_at = NOW()
			WHERE id = $1 AND user_id = $2`, customerID, userID); err != nil {
			return fmt.Errorf("failed to release customer request: %w", err)
		}

		return nil
	})
}

func (r *dispatchRepository) RecordSent(ctx context.Context, msg *models.Message) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO messages (id, customer_id, user_id, body, sent_at, carrier_message_id,
			                      delivery_status, created_at, updated_at)
			VALUES (:id, :customer_id, :user_id, :body, :sent_at, :carrier_message_id,
			        :delivery_status, :created_at, :updated_at)`, msg); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE customers
			SET delivery_state = $2, sent_at = $3, scheduled_send_at = NULL, sweep_attempts = 0, updated_at = NOW()
			WHERE id = $1`, msg.CustomerID, models.DeliveryStateSent, msg.SentAt); err != nil {
			return fmt.Errorf("failed to update customer after send: %w", err)
		}

		return nil
	})
}
