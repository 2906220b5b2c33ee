package service

import (
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/cache"
	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/config"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/quota"
	"github.com/popeskul/review-sms/internal/repository"
)

type Service struct {
	Dispatch  DispatchService
	Sweep     SweepService
	Webhook   WebhookService
	Customer  CustomerService
	Account   AccountService
	Scheduler SchedulerService
	Health    HealthService
}

// Deps are the external collaborators wired in main.
type Deps struct {
	Repo    repository.Repository
	Redis   *redis.Client
	Gateway carrier.Gateway
	// Breaker is optional; health omits the breaker section without it.
	Breaker BreakerReporter
	Access  AccessProvider
}

func NewService(cfg *config.Config, deps Deps, logger *zap.Logger) *Service {
	guard := quota.NewGuard(planLimits(cfg.Quota.PlanLimits))
	index := cache.NewMessageIndex(deps.Redis, time.Duration(cfg.Redis.MessageIndexTTL)*time.Hour)
	claims := cache.NewClaimStore(deps.Redis, time.Duration(cfg.Scheduler.ClaimTTL)*time.Second)

	dispatchService := NewDispatchService(DispatchDeps{
		Repo:    deps.Repo,
		Guard:   guard,
		Gateway: deps.Gateway,
		Senders: carrier.Senders{
			AlphanumericID: cfg.Carrier.AlphanumericID,
			PhoneNumber:    cfg.Carrier.FromNumber,
		},
		Access:            deps.Access,
		Index:             index,
		StatusCallbackURL: cfg.Carrier.StatusCallbackURL,
		Logger:            logger,
	})
	sweepService := NewSweepService(deps.Repo, dispatchService, claims, cfg.Scheduler.BatchSize, cfg.Scheduler.MaxAttempts, logger)
	schedulerService := NewSchedulerService(cfg, sweepService, logger)

	return &Service{
		Dispatch:  dispatchService,
		Sweep:     sweepService,
		Webhook:   NewWebhookService(deps.Repo, index, logger),
		Customer:  NewCustomerService(deps.Repo, logger),
		Account:   NewAccountService(deps.Repo, guard, logger),
		Scheduler: schedulerService,
		Health:    NewHealthService(deps.Repo, deps.Redis, schedulerService, deps.Breaker),
	}
}

// planLimits converts configured plan names into a tier table, falling back
// to the built-in table when none is configured.
func planLimits(raw map[string]int) quota.PlanLimits {
	if len(raw) == 0 {
		return quota.DefaultPlanLimits()
	}
	limits := make(quota.PlanLimits, len(raw))
	for plan, limit := range raw {
		limits[models.Plan(plan)] = limit
	}
	return limits
}
