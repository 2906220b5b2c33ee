package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/metrics"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/phone"
	"github.com/popeskul/review-sms/internal/repository"
)

const (
	// statusUpdateRetries bounds re-reads when a concurrent callback changes
	// the stored status between read and write.
	statusUpdateRetries = 3
	inboundPageSize     = 500
)

var (
	optOutKeywords = map[string]struct{}{
		"STOP": {}, "CANCEL": {}, "UNSUBSCRIBE": {}, "QUIT": {},
		"END": {}, "REVOKE": {}, "STOPALL": {}, "OPTOUT": {},
	}
	optInKeywords = map[string]struct{}{
		"START": {}, "UNSTOP": {}, "YES": {},
	}
)

// ParseKeyword classifies an inbound SMS body.
func ParseKeyword(body string) KeywordAction {
	word := strings.ToUpper(strings.TrimSpace(body))
	if _, ok := optOutKeywords[word]; ok {
		return KeywordOptOut
	}
	if _, ok := optInKeywords[word]; ok {
		return KeywordOptIn
	}
	return KeywordNone
}

type webhookService struct {
	repo   repository.Repository
	index  MessageIndex
	logger *zap.Logger
}

func NewWebhookService(repo repository.Repository, index MessageIndex, logger *zap.Logger) WebhookService {
	return &webhookService{
		repo:   repo,
		index:  index,
		logger: logger,
	}
}

// HandleStatus applies a delivery report. Statuses only move forward; late
// or duplicate reports are acknowledged without effect.
func (s *webhookService) HandleStatus(ctx context.Context, cb StatusCallback) (StatusOutcome, error) {
	outcome, err := s.handleStatus(ctx, cb)
	metrics.WebhooksTotal.WithLabelValues("status", string(outcome)).Inc()
	return outcome, err
}

func (s *webhookService) handleStatus(ctx context.Context, cb StatusCallback) (StatusOutcome, error) {
	logger := s.logger.With(
		zap.String("carrier_message_id", cb.CarrierMessageID),
		zap.String("status", cb.Status),
	)

	status, ok := models.ParseDeliveryStatus(strings.ToLower(strings.TrimSpace(cb.Status)))
	if !ok || cb.CarrierMessageID == "" {
		logger.Debug("Ignoring unrecognised status callback")
		return StatusIgnored, nil
	}

	msg, err := s.lookup(ctx, cb.CarrierMessageID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("Status callback for unknown message")
		return StatusUnknown, nil
	}
	if err != nil {
		logger.Error("Failed to look up message", zap.Error(err))
		return StatusIgnored, err
	}

	update := models.DeliveryUpdate{
		Status:       status,
		ErrorCode:    strings.TrimSpace(cb.ErrorCode),
		ErrorMessage: strings.TrimSpace(cb.ErrorMessage),
	}
	if update.ErrorCode != "" && update.ErrorMessage == "" {
		if code, convErr := strconv.Atoi(update.ErrorCode); convErr == nil {
			update.ErrorMessage = carrier.Describe(code).Message
		}
	}

	for attempt := 0; attempt < statusUpdateRetries; attempt++ {
		if !status.Supersedes(msg.DeliveryStatus) {
			logger.Debug("Stale status callback ignored")
			return StatusStale, nil
		}

		applied, err := s.repo.Message().UpdateDeliveryStatus(ctx, msg.ID, msg.DeliveryStatus, update)
		if err != nil {
			logger.Error("Failed to update delivery status", zap.Error(err))
			return StatusIgnored, err
		}
		if applied {
			s.afterApplied(ctx, msg, status, logger)
			return StatusApplied, nil
		}

		if msg, err = s.repo.Message().GetByID(ctx, msg.ID); err != nil {
			logger.Error("Failed to reload message", zap.Error(err))
			return StatusIgnored, err
		}
	}

	logger.Warn("Gave up applying contended status callback")
	return StatusStale, nil
}

func (s *webhookService) afterApplied(ctx context.Context, msg *models.Message, status models.DeliveryStatus, logger *zap.Logger) {
	logger.Info("Delivery status updated", zap.String("message_id", msg.ID.String()))

	if !status.IsFailure() || !msg.CustomerID.Valid {
		return
	}

	moved, err := s.repo.Customer().MarkFailed(ctx, msg.CustomerID.UUID, models.DeliveryStateSent)
	if err != nil {
		logger.Error("Failed to mark customer failed", zap.Error(err))
		return
	}
	if moved {
		logger.Info("Customer marked failed after undelivered message",
			zap.String("customer_id", msg.CustomerID.UUID.String()))
	}
}

func (s *webhookService) lookup(ctx context.Context, carrierID string) (*models.Message, error) {
	if s.index != nil {
		id, ok, err := s.index.Get(ctx, carrierID)
		if err != nil {
			s.logger.Warn("Message index unavailable, falling back to database", zap.Error(err))
		} else if ok {
			msg, err := s.repo.Message().GetByID(ctx, id)
			if err == nil {
				return msg, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		}
	}

	msg, err := s.repo.Message().GetByCarrierID(ctx, carrierID)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Put(ctx, carrierID, msg.ID); err != nil {
			s.logger.Warn("Failed to cache carrier message id", zap.Error(err))
		}
	}
	return msg, nil
}

// HandleInbound applies STOP and START keywords to every customer whose
// stored phone matches the sender.
func (s *webhookService) HandleInbound(ctx context.Context, in InboundMessage) (*InboundResult, error) {
	result, err := s.handleInbound(ctx, in)
	outcome := "error"
	if err == nil {
		outcome = string(result.Action)
	}
	metrics.WebhooksTotal.WithLabelValues("inbound", outcome).Inc()
	return result, err
}

func (s *webhookService) handleInbound(ctx context.Context, in InboundMessage) (*InboundResult, error) {
	action := ParseKeyword(in.Body)
	result := &InboundResult{Action: action}
	if action == KeywordNone {
		return result, nil
	}

	from, err := phone.Normalize(in.From, "")
	if err != nil {
		s.logger.Info("Keyword from unparseable sender ignored", zap.String("action", string(action)))
		return result, nil
	}

	ids, err := s.matchingCustomers(ctx, from)
	if err != nil {
		s.logger.Error("Failed to match inbound sender", zap.Error(err))
		return nil, err
	}
	if len(ids) == 0 {
		s.logger.Info("Keyword from unknown sender", zap.String("action", string(action)))
		return result, nil
	}

	n, err := s.repo.Customer().SetOptedOut(ctx, ids, action == KeywordOptOut)
	if err != nil {
		s.logger.Error("Failed to update opt-out", zap.Error(err))
		return nil, fmt.Errorf("failed to update opt-out: %w", err)
	}
	result.Matched = n

	s.logger.Info("Opt-out preference updated",
		zap.String("action", string(action)),
		zap.Int64("customers", n),
	)
	return result, nil
}

// matchingCustomers scans every stored phone; numbers are stored as typed so
// the comparison happens on normalised values.
func (s *webhookService) matchingCustomers(ctx context.Context, from string) ([]uuid.UUID, error) {
	var (
		ids   []uuid.UUID
		after uuid.UUID
	)
	for {
		page, err := s.repo.Customer().ListPhones(ctx, uuid.Nil, after, inboundPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list customer phones: %w", err)
		}
		for _, p := range page {
			canonical, err := phone.Normalize(p.PhoneLocal, p.PhoneRegion)
			if err == nil && canonical == from {
				ids = append(ids, p.ID)
			}
		}
		if len(page) < inboundPageSize {
			return ids, nil
		}
		after = page[len(page)-1].ID
	}
}
