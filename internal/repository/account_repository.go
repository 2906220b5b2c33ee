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

const accountColumns = `id, email, business_name, review_links, sms_template, include_name_in_sms,
	include_job_in_sms, sms_sent_this_month, plan, access_status, billing_customer_id,
	created_at, updated_at`

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

// GetByID retrieves an account by id.
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`

	var acct models.Account
	if err := r.db.GetContext(ctx, &acct, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acct, nil
}

// Upsert creates the account or updates its profile and SMS settings.
// Counters, plan and billing state are left untouched on update.
func (r *accountRepository) Upsert(ctx context.Context, acct *models.Account) error {
	query := `
		INSERT INTO users (id, email, business_name, review_links, sms_template,
		                   include_name_in_sms, include_job_in_sms)
		VALUES (:id, :email, :business_name, :review_links, :sms_template,
		        :include_name_in_sms, :include_job_in_sms)
		ON CONFLICT (id) DO UPDATE
		SET email = COALESCE(EXCLUDED.email, users.email),
		    business_name = EXCLUDED.business_name,
		    review_links = EXCLUDED.review_links,
		    sms_template = EXCLUDED.sms_template,
		    include_name_in_sms = EXCLUDED.include_name_in_sms,
		    include_job_in_sms = EXCLUDED.include_job_in_sms,
		    updated_at = NOW()`

	if _, err := r.db.NamedExecContext(ctx, query, acct); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}

	return nil
}

func (r *accountRepository) GetAccessStatus(ctx context.Context, userID uuid.UUID) (models.AccessStatus, error) {
	var status models.AccessStatus
	err := r.db.GetContext(ctx, &status, `SELECT access_status FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get access status: %w", err)
	}

	return status, nil
}

func (r *accountRepository) UpdateBilling(ctx context.Context, billingCustomerID string, status models.AccessStatus, plan models.Plan) (bool, error) {
	query := `
		UPDATE users
		SET access_status = $2,
		    plan = COALESCE(NULLIF($3, ''), plan),
		    updated_at = NOW()
		WHERE billing_customer_id = $1`

	res, err := r.db.ExecContext(ctx, query, billingCustomerID, status, string(plan))
	if err != nil {
		return false, fmt.Errorf("failed to update billing state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n > 0, nil
}

// ResetMonthlyCounters zeroes every account's monthly SMS counter.
func (r *accountRepository) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET sms_sent_this_month = 0, updated_at = NOW() WHERE sms_sent_this_month <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly counters: %w", err)
	}

	return res.RowsAffected()
}
