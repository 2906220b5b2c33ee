package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/phone"
	"github.com/popeskul/review-sms/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxNameLength    = 200
)

type customerService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewCustomerService(repo repository.Repository, logger *zap.Logger) CustomerService {
	return &customerService{
		repo:   repo,
		logger: logger,
	}
}

func (s *customerService) Create(ctx context.Context, userID uuid.UUID, in CustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, validationError("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}

	job := strings.TrimSpace(in.JobDescription)
	if utf8.RuneCountInString(job) > models.MaxJobDescriptionLength {
		return nil, validationError("job_description", fmt.Sprintf("must be at most %d characters", models.MaxJobDescriptionLength))
	}

	region := strings.TrimSpace(in.PhoneRegion)
	local := strings.TrimSpace(in.PhoneLocal)
	canonical, err := phone.Normalize(local, region)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPhone, local)
	}

	if dup, err := s.hasPhone(ctx, userID, canonical); err != nil {
		return nil, err
	} else if dup {
		return nil, ErrDuplicatePhone
	}

	c := &models.Customer{
		UserID:         userID,
		Name:           name,
		PhoneRegion:    region,
		PhoneLocal:     local,
		JobDescription: sql.NullString{String: job, Valid: job != ""},
		DeliveryState:  models.DeliveryStatePending,
	}
	if in.ScheduledSendAt != nil {
		c.DeliveryState = models.DeliveryStateScheduled
		c.ScheduledSendAt = sql.NullTime{Time: in.ScheduledSendAt.UTC(), Valid: true}
	}

	if err := s.repo.Customer().Create(ctx, c); err != nil {
		s.logger.Error("Failed to create customer", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("Customer created",
		zap.String("user_id", userID.String()),
		zap.String("customer_id", c.ID.String()),
		zap.String("delivery_state", string(c.DeliveryState)),
	)
	return c, nil
}

// hasPhone reports whether userID already has a customer with the same
// canonical number.
func (s *customerService) hasPhone(ctx context.Context, userID uuid.UUID, canonical string) (bool, error) {
	var after uuid.UUID
	for {
		page, err := s.repo.Customer().ListPhones(ctx, userID, after, inboundPageSize)
		if err != nil {
			return false, fmt.Errorf("failed to check duplicate phone: %w", err)
		}
		for _, p := range page {
			if other, err := phone.Normalize(p.PhoneLocal, p.PhoneRegion); err == nil && other == canonical {
				return true, nil
			}
		}
		if len(page) < inboundPageSize {
			return false, nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *customerService) List(ctx context.Context, userID uuid.UUID, params ListParams) (*CustomerList, error) {
	if params.State != "" && !params.State.Valid() {
		return nil, validationError("status", "is not a valid delivery state")
	}

	page, limit := normalizePage(params.Page, params.Limit)

	customers, total, err := s.repo.Customer().List(ctx, models.CustomerFilter{
		UserID: userID,
		State:  params.State,
		Search: params.Search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("Failed to list customers", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	return &CustomerList{
		Customers: customers,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: limit,
		},
	}, nil
}

func (s *customerService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Customer, error) {
	c, err := s.repo.Customer().GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, "customer")
	}
	return c, nil
}

func (s *customerService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Customer().Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("customer: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	s.logger.Info("Customer deleted",
		zap.String("user_id", userID.String()),
		zap.String("customer_id", id.String()),
	)
	return nil
}

func (s *customerService) Schedule(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.Customer, error) {
	if at.IsZero() {
		return nil, validationError("scheduled_send_at", "is required")
	}

	if err := s.repo.Customer().Schedule(ctx, userID, id, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("customer: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to schedule customer: %w", err)
	}

	s.logger.Info("Customer scheduled",
		zap.String("customer_id", id.String()),
		zap.Time("scheduled_send_at", at.UTC()),
	)
	return s.Get(ctx, userID, id)
}

func (s *customerService) Unsubscribe(ctx context.Context, userID, id uuid.UUID) (*models.Customer, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	if _, err := s.repo.Customer().SetOptedOut(ctx, []uuid.UUID{id}, true); err != nil {
		return nil, fmt.Errorf("failed to unsubscribe customer: %w", err)
	}

	s.logger.Info("Customer unsubscribed", zap.String("customer_id", id.String()))
	return s.Get(ctx, userID, id)
}

func (s *customerService) Messages(ctx context.Context, userID, id uuid.UUID, page, limit int) ([]*models.Message, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	page, limit = normalizePage(page, limit)
	msgs, err := s.repo.Message().ListByCustomer(ctx, userID, id, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
