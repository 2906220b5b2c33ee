package quota_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/quota"
)

func activeAccount(sent int) *models.Account {
	return &models.Account{
		Plan:             models.PlanStarter,
		AccessStatus:     models.AccessStatusActive,
		SMSSentThisMonth: sent,
	}
}

func TestGuard_Check(t *testing.T) {
	guard := quota.NewGuard(nil)

	tests := []struct {
		name        string
		account     *models.Account
		customer    *models.Customer
		wantReason  quota.Reason
		wantReasons []quota.Reason
	}{
		{
			name:     "allowed",
			account:  activeAccount(0),
			customer: &models.Customer{},
		},
		{
			name:        "monthly limit reached",
			account:     activeAccount(100),
			customer:    &models.Customer{},
			wantReason:  quota.ReasonMonthlyLimitReached,
			wantReasons: []quota.Reason{quota.ReasonMonthlyLimitReached},
		},
		{
			name:        "customer cap reached",
			account:     activeAccount(0),
			customer:    &models.Customer{RequestCount: 3},
			wantReason:  quota.ReasonCustomerCapReached,
			wantReasons: []quota.Reason{quota.ReasonCustomerCapReached},
		},
		{
			name:        "opted out",
			account:     activeAccount(0),
			customer:    &models.Customer{OptedOut: true},
			wantReason:  quota.ReasonOptedOut,
			wantReasons: []quota.Reason{quota.ReasonOptedOut},
		},
		{
			name: "payment inactive",
			account: &models.Account{
				Plan:         models.PlanStarter,
				AccessStatus: models.AccessStatusPastDue,
			},
			customer:    &models.Customer{},
			wantReason:  quota.ReasonPaymentInactive,
			wantReasons: []quota.Reason{quota.ReasonPaymentInactive},
		},
		{
			name: "all conditions reported in precedence order",
			account: &models.Account{
				Plan:             models.PlanStarter,
				AccessStatus:     models.AccessStatusCanceled,
				SMSSentThisMonth: 150,
			},
			customer:   &models.Customer{OptedOut: true, RequestCount: 3},
			wantReason: quota.ReasonPaymentInactive,
			wantReasons: []quota.Reason{
				quota.ReasonPaymentInactive,
				quota.ReasonMonthlyLimitReached,
				quota.ReasonOptedOut,
				quota.ReasonCustomerCapReached,
			},
		},
		{
			name:       "opted out outranks customer cap",
			account:    activeAccount(0),
			customer:   &models.Customer{OptedOut: true, RequestCount: 3},
			wantReason: quota.ReasonOptedOut,
			wantReasons: []quota.Reason{
				quota.ReasonOptedOut,
				quota.ReasonCustomerCapReached,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Check(tt.account, tt.customer)
			assert.Equal(t, tt.wantReason, d.Reason())
			assert.Equal(t, tt.wantReasons, d.Reasons)
			assert.Equal(t, len(tt.wantReasons) == 0, d.Allowed())
		})
	}
}

func TestGuard_CustomerCapAlwaysDenies(t *testing.T) {
	guard := quota.NewGuard(nil)
	accounts := []*models.Account{
		activeAccount(0),
		activeAccount(99),
		{Plan: models.PlanBusiness, AccessStatus: models.AccessStatusActive},
		{Plan: "unknown", AccessStatus: models.AccessStatusInactive},
	}

	for _, acct := range accounts {
		for _, optedOut := range []bool{true, false} {
			d := guard.Check(acct, &models.Customer{RequestCount: quota.CustomerCap, OptedOut: optedOut})
			assert.False(t, d.Allowed())
			assert.True(t, d.Has(quota.ReasonCustomerCapReached))
		}
	}
}

func TestPlanLimits_LimitFor(t *testing.T) {
	limits := quota.PlanLimits{models.PlanPro: 750}

	assert.Equal(t, 750, limits.LimitFor(models.PlanPro))
	assert.Equal(t, quota.DefaultMonthlyLimit, limits.LimitFor(models.PlanFree))
	assert.Equal(t, 20, quota.DefaultPlanLimits().LimitFor(models.PlanFree))
	assert.Equal(t, 2000, quota.DefaultPlanLimits().LimitFor(models.PlanBusiness))
}

func TestGuard_UsesPlanLimit(t *testing.T) {
	guard := quota.NewGuard(quota.PlanLimits{models.PlanFree: 5, models.PlanPro: 500})

	free := &models.Account{Plan: models.PlanFree, AccessStatus: models.AccessStatusActive, SMSSentThisMonth: 5}
	pro := &models.Account{Plan: models.PlanPro, AccessStatus: models.AccessStatusActive, SMSSentThisMonth: 5}

	assert.Equal(t, quota.ReasonMonthlyLimitReached, guard.Check(free, &models.Customer{}).Reason())
	assert.True(t, guard.Check(pro, &models.Customer{}).Allowed())
}
