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

const messageColumns = `id, customer_id, user_id, body, sent_at, carrier_message_id, delivery_status,
	delivery_error_code, delivery_error_message, created_at, updated_at`

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return r.getOne(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
}

// GetByCarrierID finds the message the carrier knows as carrierID.
func (r *messageRepository) GetByCarrierID(ctx context.Context, carrierID string) (*models.Message, error) {
	return r.getOne(ctx, `SELECT `+messageColumns+` FROM messages WHERE carrier_message_id = $1`, carrierID)
}

func (r *messageRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Message, error) {
	var msg models.Message
	if err := r.db.GetContext(ctx, &msg, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// ListByCustomer retrieves a customer's message history, newest first.
func (r *messageRepository) ListByCustomer(ctx context.Context, userID, customerID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE user_id = $1 AND customer_id = $2
		ORDER BY sent_at DESC
		LIMIT $3 OFFSET $4`

	var messages []*models.Message
	if err := r.db.SelectContext(ctx, &messages, query, userID, customerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, prev *models.DeliveryStatus, update models.DeliveryUpdate) (bool, error) {
	query := `
		UPDATE messages
		SET delivery_status = $3,
		    delivery_error_code = $4,
		    delivery_error_message = $5,
		    updated_at = NOW()
		WHERE id = $1 AND delivery_status IS NOT DISTINCT FROM $2`

	var prevStatus sql.NullString
	if prev != nil {
		prevStatus = sql.NullString{String: string(*prev), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, id, prevStatus, update.Status,
		nullString(update.ErrorCode), nullString(update.ErrorMessage))
	if err != nil {
		return false, fmt.Errorf("failed to update delivery status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
