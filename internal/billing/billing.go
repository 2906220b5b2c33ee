// Package billing keeps each account's access status in step with the
// billing provider's subscription events.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/models"
)

var ErrInvalidSignature = errors.New("billing webhook signature verification failed")

//go:generate mockgen -source=billing.go -destination=mocks/billing_mock.go -package=mocks

// AccountStore is the storage the billing sync needs.
type AccountStore interface {
	GetAccessStatus(ctx context.Context, userID uuid.UUID) (models.AccessStatus, error)
	UpdateBilling(ctx context.Context, billingCustomerID string, status models.AccessStatus, plan models.Plan) (bool, error)
}

// Service answers access-status queries and applies subscription events.
type Service struct {
	store         AccountStore
	webhookSecret string
	logger        *zap.Logger
}

func NewService(store AccountStore, webhookSecret string, logger *zap.Logger) *Service {
	return &Service{store: store, webhookSecret: webhookSecret, logger: logger}
}

// AccessStatus returns the stored, webhook-synced status of userID.
func (s *Service) AccessStatus(ctx context.Context, userID uuid.UUID) (models.AccessStatus, error) {
	return s.store.GetAccessStatus(ctx, userID)
}

// MapSubscriptionStatus translates a provider subscription status.
func MapSubscriptionStatus(status stripe.SubscriptionStatus) models.AccessStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.AccessStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.AccessStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.AccessStatusCanceled
	default:
		return models.AccessStatusInactive
	}
}

// HandleWebhook verifies payload and applies subscription lifecycle events.
// Other event types are acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
	default:
		s.logger.Debug("Ignoring billing event", zap.String("type", string(event.Type)), zap.String("id", event.ID))
		return nil
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		s.logger.Warn("Subscription event without customer", zap.String("id", event.ID))
		return nil
	}

	status := MapSubscriptionStatus(sub.Status)
	if event.Type == stripe.EventTypeCustomerSubscriptionDeleted {
		status = models.AccessStatusCanceled
	}

	var plan models.Plan
	switch p := models.Plan(sub.Metadata["plan"]); p {
	case models.PlanFree, models.PlanStarter, models.PlanPro, models.PlanBusiness:
		plan = p
	}

	found, err := s.store.UpdateBilling(ctx, sub.Customer.ID, status, plan)
	if err != nil {
		return fmt.Errorf("failed to update access status: %w", err)
	}
	if !found {
		s.logger.Warn("Billing event for unknown customer",
			zap.String("billing_customer_id", sub.Customer.ID),
			zap.String("event_id", event.ID),
		)
		return nil
	}

	s.logger.Info("Access status synced",
		zap.String("billing_customer_id", sub.Customer.ID),
		zap.String("access_status", string(status)),
		zap.String("event_type", string(event.Type)),
	)
	return nil
}
