// Package quota decides whether a review request may be sent.
package quota

import "github.com/popeskul/review-sms/internal/models"

// Reason names one gating condition.
type Reason string

const (
	ReasonPaymentInactive     Reason = "payment_inactive"
	ReasonMonthlyLimitReached Reason = "monthly_limit_reached"
	ReasonOptedOut            Reason = "opted_out"
	ReasonCustomerCapReached  Reason = "customer_cap_reached"
)

const (
	// CustomerCap is the lifetime number of requests per customer.
	CustomerCap = 3
	// DefaultMonthlyLimit applies to plans missing from the tier table.
	DefaultMonthlyLimit = 100
)

// PlanLimits maps a plan to its monthly SMS allowance.
type PlanLimits map[models.Plan]int

// DefaultPlanLimits is used when configuration provides no table.
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		models.PlanFree:     20,
		models.PlanStarter:  100,
		models.PlanPro:      500,
		models.PlanBusiness: 2000,
	}
}

// LimitFor returns the monthly allowance for plan.
func (p PlanLimits) LimitFor(plan models.Plan) int {
	if limit, ok := p[plan]; ok && limit >= 0 {
		return limit
	}
	return DefaultMonthlyLimit
}

// Decision lists every failed condition, highest precedence first.
type Decision struct {
	Reasons []Reason
}

func (d Decision) Allowed() bool {
	return len(d.Reasons) == 0
}

// Reason is the single reason to report to the user, or "" when allowed.
func (d Decision) Reason() Reason {
	if d.Allowed() {
		return ""
	}
	return d.Reasons[0]
}

// Has reports whether r is among the failed conditions.
func (d Decision) Has(r Reason) bool {
	for _, reason := range d.Reasons {
		if reason == r {
			return true
		}
	}
	return false
}

// Guard evaluates quota and consent gates. It keeps no state of its own.
type Guard struct {
	limits PlanLimits
}

func NewGuard(limits PlanLimits) *Guard {
	if len(limits) == 0 {
		limits = DefaultPlanLimits()
	}
	return &Guard{limits: limits}
}

// MonthlyLimit returns the allowance of acct's plan.
func (g *Guard) MonthlyLimit(acct *models.Account) int {
	return g.limits.LimitFor(acct.Plan)
}

// Check evaluates all conditions. acct.AccessStatus must already hold the
// billing provider's answer.
func (g *Guard) Check(acct *models.Account, cust *models.Customer) Decision {
	var d Decision

	if acct.AccessStatus != models.AccessStatusActive {
		d.Reasons = append(d.Reasons, ReasonPaymentInactive)
	}
	if acct.SMSSentThisMonth >= g.MonthlyLimit(acct) {
		d.Reasons = append(d.Reasons, ReasonMonthlyLimitReached)
	}
	if cust.OptedOut {
		d.Reasons = append(d.Reasons, ReasonOptedOut)
	}
	if cust.RequestCount >= CustomerCap {
		d.Reasons = append(d.Reasons, ReasonCustomerCapReached)
	}

	return d
}
