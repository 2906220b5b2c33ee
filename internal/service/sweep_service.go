package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/cache"
	"github.com/popeskul/review-sms/internal/metrics"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/repository"
)

// Claimer grants exclusive short-lived ownership of a customer.
type Claimer interface {
	Acquire(ctx context.Context, customerID uuid.UUID) (*cache.Claim, bool, error)
	Release(ctx context.Context, claim *cache.Claim) error
}

type sweepService struct {
	repo        repository.Repository
	dispatch    DispatchService
	claims      Claimer
	batchSize   int
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewSweepService(
	repo repository.Repository,
	dispatch DispatchService,
	claims Claimer,
	batchSize, maxAttempts int,
	logger *zap.Logger,
) SweepService {
	return &sweepService{
		repo:        repo,
		dispatch:    dispatch,
		claims:      claims,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

type sweepOutcome string

const (
	sweepSuccess sweepOutcome = "success"
	sweepError   sweepOutcome = "error"
	sweepSkipped sweepOutcome = "skipped"
)

// Run dispatches every due customer once. Only a failure to list due
// customers aborts the sweep.
func (s *sweepService) Run(ctx context.Context) (*SweepSummary, error) {
	due, err := s.repo.Customer().ListDue(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list due customers", zap.Error(err))
		return nil, fmt.Errorf("failed to list due customers: %w", err)
	}

	summary := &SweepSummary{Total: len(due)}
	if len(due) == 0 {
		s.logger.Debug("No scheduled customers due")
		return summary, nil
	}

	s.logger.Info("Sweeping scheduled customers", zap.Int("count", len(due)))

	ctx = withTrigger(ctx, triggerSweep)
	for _, cust := range due {
		var outcome sweepOutcome
		if ctx.Err() != nil {
			outcome = sweepSkipped
		} else {
			outcome = s.process(ctx, cust)
		}

		metrics.SweepCustomersTotal.WithLabelValues(string(outcome)).Inc()
		switch outcome {
		case sweepSuccess:
			summary.SuccessCount++
		case sweepError:
			summary.ErrorCount++
		case sweepSkipped:
			summary.SkippedCount++
		}
	}

	s.logger.Info("Sweep finished",
		zap.Int("total", summary.Total),
		zap.Int("success", summary.SuccessCount),
		zap.Int("errors", summary.ErrorCount),
		zap.Int("skipped", summary.SkippedCount),
	)

	return summary, nil
}

func (s *sweepService) process(ctx context.Context, cust *models.Customer) sweepOutcome {
	logger := s.logger.With(
		zap.String("customer_id", cust.ID.String()),
		zap.String("user_id", cust.UserID.String()),
	)

	claim, ok, err := s.claims.Acquire(ctx, cust.ID)
	if err != nil {
		logger.Error("Failed to claim customer", zap.Error(err))
		return sweepError
	}
	if !ok {
		logger.Debug("Customer claimed by another sweep")
		return sweepSkipped
	}
	defer func() {
		releaseCtx, cancel := detached(ctx)
		defer cancel()
		if err := s.claims.Release(releaseCtx, claim); err != nil {
			logger.Warn("Failed to release claim", zap.Error(err))
		}
	}()

	// The claim only filters concurrent sweeps. The state change below is
	// what makes a customer sendable once, even for a stale due list.
	begun, err := s.repo.Customer().BeginSend(ctx, cust.ID, s.now().UTC())
	if err != nil {
		logger.Error("Failed to begin scheduled send", zap.Error(err))
		return sweepError
	}
	if !begun {
		logger.Debug("Customer no longer due")
		return sweepSkipped
	}

	res, err := s.dispatch.Send(ctx, cust.UserID, cust.ID, true)
	if err == nil {
		if !res.Persisted {
			logger.Error("Scheduled send was not recorded, customer held in sending",
				zap.String("carrier_message_id", res.CarrierMessageID))
		}
		return sweepSuccess
	}

	logger.Warn("Scheduled dispatch failed", zap.Error(err))
	s.settleFailure(ctx, cust, err, logger)
	return sweepError
}

// settleFailure moves a customer out of sending after a failed dispatch.
func (s *sweepService) settleFailure(ctx context.Context, cust *models.Customer, err error, logger *zap.Logger) {
	bookCtx, cancel := detached(ctx)
	defer cancel()

	var (
		quotaErr   *QuotaError
		carrierErr *CarrierError
	)
	switch {
	case errors.Is(err, ErrInvalidPhone), errors.As(err, &quotaErr) && quotaErr.Permanent():
		if _, markErr := s.repo.Customer().MarkFailed(bookCtx, cust.ID, models.DeliveryStateSending); markErr != nil {
			logger.Error("Failed to mark customer failed", zap.Error(markErr))
			return
		}
		logger.Info("Customer marked failed", zap.Error(err))

	case errors.As(err, &carrierErr) && carrierErr.Unconfirmed:
		logger.Error("Carrier outcome unknown, customer held in sending for reconciliation",
			zap.Int("code", carrierErr.Code))

	case errors.As(err, &carrierErr):
		attempts, failed, recErr := s.repo.Customer().RecordSweepFailure(bookCtx, cust.ID, s.maxAttempts)
		if recErr != nil {
			logger.Error("Failed to record sweep failure", zap.Error(recErr))
			return
		}
		if failed {
			logger.Info("Customer marked failed after repeated carrier errors", zap.Int("attempts", attempts))
		}

	default:
		if _, retErr := s.repo.Customer().ReturnToSchedule(bookCtx, cust.ID); retErr != nil {
			logger.Error("Failed to return customer to schedule", zap.Error(retErr))
		}
	}
}

func (s *sweepService) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	n, err := s.repo.Account().ResetMonthlyCounters(ctx)
	if err != nil {
		s.logger.Error("Failed to reset monthly counters", zap.Error(err))
		return 0, fmt.Errorf("failed to reset monthly counters: %w", err)
	}
	s.logger.Info("Monthly counters reset", zap.Int64("accounts", n))
	return n, nil
}
