package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/auth"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/quota"
	"github.com/popeskul/review-sms/internal/repository"
	"github.com/popeskul/review-sms/internal/smstemplate"
)

const maxTemplateLength = 480

type accountService struct {
	repo   repository.Repository
	guard  *quota.Guard
	logger *zap.Logger
}

func NewAccountService(repo repository.Repository, guard *quota.Guard, logger *zap.Logger) AccountService {
	return &accountService{
		repo:   repo,
		guard:  guard,
		logger: logger,
	}
}

func (s *accountService) Get(ctx context.Context, userID uuid.UUID) (*AccountView, error) {
	acct, err := s.repo.Account().GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "account")
	}
	return &AccountView{Account: acct, MonthlyLimit: s.guard.MonthlyLimit(acct)}, nil
}

// UpdateSettings creates the account on first use.
func (s *accountService) UpdateSettings(ctx context.Context, identity *auth.Identity, settings AccountSettings) (*AccountView, error) {
	acct, err := validateSettings(settings)
	if err != nil {
		return nil, err
	}
	acct.ID = identity.UserID
	acct.Email = sql.NullString{String: identity.Email, Valid: identity.Email != ""}

	if err := s.repo.Account().Upsert(ctx, acct); err != nil {
		s.logger.Error("Failed to save account settings", zap.String("user_id", identity.UserID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to save account settings: %w", err)
	}

	s.logger.Info("Account settings updated", zap.String("user_id", identity.UserID.String()))
	return s.Get(ctx, identity.UserID)
}

func validateSettings(in AccountSettings) (*models.Account, error) {
	name := strings.TrimSpace(in.BusinessName)
	if name == "" {
		return nil, validationError("business_name", "is required")
	}

	if len(in.ReviewLinks) == 0 || len(in.ReviewLinks) > models.MaxReviewLinks {
		return nil, validationError("review_links", fmt.Sprintf("must contain 1 to %d links", models.MaxReviewLinks))
	}
	links := make(models.ReviewLinks, 0, len(in.ReviewLinks))
	for i, l := range in.ReviewLinks {
		linkName, raw := strings.TrimSpace(l.Name), strings.TrimSpace(l.URL)
		if linkName == "" {
			return nil, validationError(fmt.Sprintf("review_links[%d].name", i), "is required")
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, validationError(fmt.Sprintf("review_links[%d].url", i), "must be an http(s) URL")
		}
		links = append(links, models.ReviewLink{Name: linkName, URL: raw})
	}

	tmpl := strings.TrimSpace(in.SMSTemplate)
	if tmpl == "" {
		tmpl = smstemplate.DefaultTemplate
	}
	if !strings.Contains(tmpl, smstemplate.BusinessNamePlaceholder) {
		return nil, validationError("sms_template", "must contain "+smstemplate.BusinessNamePlaceholder)
	}
	if len(tmpl) > maxTemplateLength {
		return nil, validationError("sms_template", fmt.Sprintf("must be at most %d bytes", maxTemplateLength))
	}

	return &models.Account{
		BusinessName:     name,
		ReviewLinks:      links,
		SMSTemplate:      tmpl,
		IncludeNameInSMS: in.IncludeNameInSMS,
		IncludeJobInSMS:  in.IncludeJobInSMS,
	}, nil
}
