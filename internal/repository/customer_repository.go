package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/review-sms/internal/models"
)

const customerColumns = `id, user_id, name, phone_region, phone_local, job_description, delivery_state,
	scheduled_send_at, sent_at, request_count, opted_out, sweep_attempts, created_at, updated_at`

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// Create inserts a customer. ID, state and timestamps are filled in when empty.
func (r *customerRepository) Create(ctx context.Context, c *models.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DeliveryState == "" {
		c.DeliveryState = models.DeliveryStatePending
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `
		INSERT INTO customers (id, user_id, name, phone_region, phone_local, job_description,
		                       delivery_state, scheduled_send_at, created_at, updated_at)
		VALUES (:id, :user_id, :name, :phone_region, :phone_local, :job_description,
		        :delivery_state, :scheduled_send_at, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND user_id = $2`

	var c models.Customer
	if err := r.db.GetContext(ctx, &c, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return &c, nil
}

// List returns one page of a user's customers, newest first, and the total
// number matching the filter.
func (r *customerRepository) List(ctx context.Context, filter models.CustomerFilter) ([]*models.Customer, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}

	if filter.State != "" {
		args = append(args, filter.State)
		where = append(where, fmt.Sprintf("delivery_state = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%[1]d OR job_description ILIKE $%[1]d)", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM customers WHERE `+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		customerColumns, clause, len(args)-1, len(args))

	var customers []*models.Customer
	if err := r.db.SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	return customers, total, nil
}

// Delete removes a customer. Its messages are kept with customer_id cleared.
func (r *customerRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	return expectOne(res)
}

// Schedule queues the customer for the sweep at the given time.
func (r *customerRepository) Schedule(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE customers
		SET delivery_state = $3, scheduled_send_at = $4, sweep_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID, models.DeliveryStateScheduled, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to schedule customer: %w", err)
	}

	return expectOne(res)
}

func (r *customerRepository) SetOptedOut(ctx context.Context, ids []uuid.UUID, optedOut bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET opted_out = $2, updated_at = NOW() WHERE id = ANY($1::uuid[])`,
		pq.Array(keys), optedOut)
	if err != nil {
		return 0, fmt.Errorf("failed to update opt-out flag: %w", err)
	}

	return res.RowsAffected()
}

func (r *customerRepository) ListPhones(ctx context.Context, userID uuid.UUID, after uuid.UUID, limit int) ([]*models.CustomerPhone, error) {
	query := `
		SELECT id, user_id, phone_region, phone_local
		FROM customers
		WHERE id > $1 AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR user_id = $2)
		ORDER BY id
		LIMIT $3`

	var phones []*models.CustomerPhone
	if err := r.db.SelectContext(ctx, &phones, query, after, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list customer phones: %w", err)
	}

	return phones, nil
}

func (r *customerRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Customer, error) {
	query := `SELECT ` + customerColumns + `
		FROM customers
		WHERE delivery_state = $1 AND scheduled_send_at <= $2
		ORDER BY scheduled_send_at ASC
		LIMIT $3`

	var customers []*models.Customer
	if err := r.db.SelectContext(ctx, &customers, query, models.DeliveryStateScheduled, now.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list due customers: %w", err)
	}

	return customers, nil
}

func (r *customerRepository) BeginSend(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE customers
		SET delivery_state = $2, updated_at = NOW()
		WHERE id = $1 AND delivery_state = $3 AND scheduled_send_at <= $4`

	res, err := r.db.ExecContext(ctx, query, id, models.DeliveryStateSending, models.DeliveryStateScheduled, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to begin customer send: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *customerRepository) ReturnToSchedule(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE customers
		SET delivery_state = $2, updated_at = NOW()
		WHERE id = $1 AND delivery_state = $3`

	res, err := r.db.ExecContext(ctx, query, id, models.DeliveryStateScheduled, models.DeliveryStateSending)
	if err != nil {
		return false, fmt.Errorf("failed to return customer to schedule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *customerRepository) MarkFailed(ctx context.Context, id uuid.UUID, from models.DeliveryState) (bool, error) {
	query := `
		UPDATE customers
		SET delivery_state = $3, scheduled_send_at = NULL, updated_at = NOW()
		WHERE id = $1 AND delivery_state = $2`

	res, err := r.db.ExecContext(ctx, query, id, from, models.DeliveryStateFailed)
	if err != nil {
		return false, fmt.Errorf("failed to mark customer failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *customerRepository) RecordSweepFailure(ctx context.Context, id uuid.UUID, maxAttempts int) (int, bool, error) {
	query := `
		UPDATE customers
		SET sweep_attempts = sweep_attempts + 1,
		    delivery_state = CASE WHEN sweep_attempts + 1 >= $3 THEN $4 ELSE $5 END,
		    scheduled_send_at = CASE WHEN sweep_attempts + 1 >= $3 THEN NULL ELSE scheduled_send_at END,
		    updated_at = NOW()
		WHERE id = $1 AND delivery_state = $2
		RETURNING sweep_attempts, delivery_state`

	var row struct {
		Attempts int                  `db:"sweep_attempts"`
		State    models.DeliveryState `db:"delivery_state"`
	}
	err := r.db.GetContext(ctx, &row, query, id, models.DeliveryStateSending, maxAttempts,
		models.DeliveryStateFailed, models.DeliveryStateScheduled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrNotFound
		}
		return 0, false, fmt.Errorf("failed to record sweep failure: %w", err)
	}

	return row.Attempts, row.State == models.DeliveryStateFailed, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
