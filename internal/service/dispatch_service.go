package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/metrics"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/phone"
	"github.com/popeskul/review-sms/internal/quota"
	"github.com/popeskul/review-sms/internal/repository"
	"github.com/popeskul/review-sms/internal/smstemplate"
)

// bookkeepingTimeout bounds storage work done after the carrier accepted a
// message. It runs detached from the caller's cancellation.
const bookkeepingTimeout = 10 * time.Second

// AccessProvider reports an account's billing access status.
type AccessProvider interface {
	AccessStatus(ctx context.Context, userID uuid.UUID) (models.AccessStatus, error)
}

// MessageIndex caches carrier message ids for delivery callbacks.
type MessageIndex interface {
	Put(ctx context.Context, carrierID string, messageID uuid.UUID) error
	Get(ctx context.Context, carrierID string) (uuid.UUID, bool, error)
}

type triggerKey struct{}

const (
	triggerManual = "manual"
	triggerSweep  = "sweep"
)

func withTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok {
		return t
	}
	return triggerManual
}

type dispatchService struct {
	repo              repository.Repository
	guard             *quota.Guard
	gateway           carrier.Gateway
	senders           carrier.Senders
	access            AccessProvider
	index             MessageIndex
	statusCallbackURL string
	logger            *zap.Logger
	now               func() time.Time
}

// DispatchDeps are the collaborators of the dispatch engine. Access and
// Index are optional.
type DispatchDeps struct {
	Repo              repository.Repository
	Guard             *quota.Guard
	Gateway           carrier.Gateway
	Senders           carrier.Senders
	Access            AccessProvider
	Index             MessageIndex
	StatusCallbackURL string
	Logger            *zap.Logger
}

func NewDispatchService(deps DispatchDeps) DispatchService {
	return &dispatchService{
		repo:              deps.Repo,
		guard:             deps.Guard,
		gateway:           deps.Gateway,
		senders:           deps.Senders,
		access:            deps.Access,
		index:             deps.Index,
		statusCallbackURL: deps.StatusCallbackURL,
		logger:            deps.Logger,
		now:               time.Now,
	}
}

// Send runs the full dispatch pipeline for one customer. It is not
// idempotent: every successful call sends one SMS.
func (s *dispatchService) Send(ctx context.Context, userID, customerID uuid.UUID, consentConfirmed bool) (*SendResult, error) {
	trigger := triggerFrom(ctx)
	logger := s.logger.With(
		zap.String("user_id", userID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("trigger", trigger),
	)

	acct, cust, err := s.load(ctx, userID, customerID)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(trigger, "error").Inc()
		return nil, err
	}

	if decision := s.guard.Check(acct, cust); !decision.Allowed() {
		metrics.DispatchTotal.WithLabelValues(trigger, "denied").Inc()
		logger.Info("Dispatch denied", zap.String("reason", string(decision.Reason())))
		return nil, &QuotaError{Reason: decision.Reason(), Reasons: decision.Reasons}
	}

	if !consentConfirmed {
		metrics.DispatchTotal.WithLabelValues(trigger, "denied").Inc()
		return nil, ErrConsentRequired
	}

	to, err := phone.Normalize(cust.PhoneLocal, cust.PhoneRegion)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(trigger, "invalid").Inc()
		logger.Info("Customer phone is invalid", zap.String("phone_region", cust.PhoneRegion))
		return nil, fmt.Errorf("%w: %s", ErrInvalidPhone, cust.PhoneLocal)
	}
	region := phone.Region(to)

	body := smstemplate.Render(renderInput(acct, cust, region))

	monthlyLimit := s.guard.MonthlyLimit(acct)
	reservation, err := s.repo.Dispatch().Reserve(ctx, userID, customerID, monthlyLimit, quota.CustomerCap)
	if err != nil {
		qerr := reservationError(err)
		var quotaErr *QuotaError
		if errors.As(qerr, &quotaErr) {
			metrics.DispatchTotal.WithLabelValues(trigger, "denied").Inc()
		} else {
			metrics.DispatchTotal.WithLabelValues(trigger, "error").Inc()
		}
		return nil, qerr
	}

	receipt, err := s.gateway.Send(ctx, carrier.OutboundSMS{
		To:                to,
		Body:              body,
		From:              s.senders.Select(region),
		StatusCallbackURL: s.statusCallbackURL,
	})
	if err != nil {
		carrierErr := newCarrierError(err)
		metrics.CarrierErrorsTotal.WithLabelValues(string(carrierErr.Category)).Inc()

		if carrierErr.Unconfirmed {
			// The carrier may have accepted the message, so the reservation
			// stays and the customer counts as contacted.
			metrics.DispatchTotal.WithLabelValues(trigger, "unconfirmed").Inc()
			metrics.UnreconciledSendsTotal.Inc()
			logger.Error("Carrier outcome unknown, quota kept for manual reconciliation",
				zap.Int("code", carrierErr.Code),
				zap.Error(err),
			)
			return nil, carrierErr
		}

		metrics.DispatchTotal.WithLabelValues(trigger, "carrier_error").Inc()
		logger.Warn("Carrier rejected message",
			zap.Int("code", carrierErr.Code),
			zap.String("category", string(carrierErr.Category)),
			zap.Error(err),
		)

		releaseCtx, cancel := detached(ctx)
		defer cancel()
		if relErr := s.repo.Dispatch().Release(releaseCtx, userID, customerID); relErr != nil {
			logger.Error("Failed to release quota reservation", zap.Error(relErr))
		}
		return nil, carrierErr
	}

	status := models.DeliveryStatusQueued
	if parsed, ok := models.ParseDeliveryStatus(receipt.Status); ok {
		status = parsed
	}
	sentAt := s.now().UTC()
	msg := &models.Message{
		ID:               uuid.New(),
		CustomerID:       uuid.NullUUID{UUID: customerID, Valid: true},
		UserID:           userID,
		Body:             body,
		SentAt:           sentAt,
		CarrierMessageID: receipt.MessageID,
		DeliveryStatus:   &status,
		CreatedAt:        sentAt,
		UpdatedAt:        sentAt,
	}

	result := &SendResult{
		MessageID:        msg.ID,
		CarrierMessageID: receipt.MessageID,
		Status:           string(status),
		SMSSentThisMonth: reservation.SMSSentThisMonth,
		MonthlyLimit:     monthlyLimit,
		RequestCount:     reservation.RequestCount,
		Persisted:        true,
	}

	bookCtx, cancel := detached(ctx)
	defer cancel()

	if err := s.repo.Dispatch().RecordSent(bookCtx, msg); err != nil {
		result.Persisted = false
		metrics.UnreconciledSendsTotal.Inc()
		logger.Error("Message sent but not recorded, manual reconciliation required",
			zap.String("carrier_message_id", receipt.MessageID),
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
	} else if s.index != nil {
		if err := s.index.Put(bookCtx, receipt.MessageID, msg.ID); err != nil {
			logger.Warn("Failed to cache carrier message id", zap.Error(err))
		}
	}

	metrics.DispatchTotal.WithLabelValues(trigger, "sent").Inc()
	logger.Info("Review request sent",
		zap.String("carrier_message_id", receipt.MessageID),
		zap.String("status", string(status)),
		zap.Int("sms_sent_this_month", reservation.SMSSentThisMonth),
	)

	return result, nil
}

func (s *dispatchService) load(ctx context.Context, userID, customerID uuid.UUID) (*models.Account, *models.Customer, error) {
	acct, err := s.repo.Account().GetByID(ctx, userID)
	if err != nil {
		return nil, nil, notFound(err, "account")
	}

	cust, err := s.repo.Customer().GetByID(ctx, userID, customerID)
	if err != nil {
		return nil, nil, notFound(err, "customer")
	}

	if s.access != nil {
		status, err := s.access.AccessStatus(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get access status: %w", err)
		}
		acct.AccessStatus = status
	}

	return acct, cust, nil
}

func renderInput(acct *models.Account, cust *models.Customer, region string) smstemplate.Input {
	links := make([]smstemplate.Link, 0, len(acct.ReviewLinks))
	for _, l := range acct.ReviewLinks {
		links = append(links, smstemplate.Link{Name: l.Name, URL: l.URL})
	}

	return smstemplate.Input{
		Template:       acct.SMSTemplate,
		BusinessName:   acct.BusinessName,
		ReviewLinks:    links,
		IncludeName:    acct.IncludeNameInSMS,
		IncludeJob:     acct.IncludeJobInSMS,
		CustomerName:   cust.Name,
		JobDescription: cust.JobDescription.String,
		Region:         region,
	}
}

// reservationError maps a storage-level denial onto the dispatch error.
func reservationError(err error) error {
	switch {
	case errors.Is(err, repository.ErrMonthlyLimitReached):
		return &QuotaError{Reason: quota.ReasonMonthlyLimitReached, Reasons: []quota.Reason{quota.ReasonMonthlyLimitReached}}
	case errors.Is(err, repository.ErrCustomerOptedOut):
		return &QuotaError{Reason: quota.ReasonOptedOut, Reasons: []quota.Reason{quota.ReasonOptedOut}}
	case errors.Is(err, repository.ErrCustomerCapReached):
		return &QuotaError{Reason: quota.ReasonCustomerCapReached, Reasons: []quota.Reason{quota.ReasonCustomerCapReached}}
	default:
		return notFound(err, "reservation")
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// detached returns a context that survives the caller's cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}
