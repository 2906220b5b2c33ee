package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/quota"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrConsentRequired = errors.New("customer consent must be confirmed before sending")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicatePhone  = errors.New("a customer with this phone number already exists")
)

// validationError wraps ErrValidation with the offending field.
func validationError(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, msg)
}

// QuotaError reports why a dispatch was denied.
type QuotaError struct {
	Reason  quota.Reason
	Reasons []quota.Reason
}

func (e *QuotaError) Error() string {
	if len(e.Reasons) > 1 {
		all := make([]string, len(e.Reasons))
		for i, r := range e.Reasons {
			all[i] = string(r)
		}
		return fmt.Sprintf("dispatch denied: %s (%s)", e.Reason, strings.Join(all, ", "))
	}
	return fmt.Sprintf("dispatch denied: %s", e.Reason)
}

// Permanent reports whether retrying can never succeed without user action
// on the customer.
func (e *QuotaError) Permanent() bool {
	return e.Reason == quota.ReasonOptedOut || e.Reason == quota.ReasonCustomerCapReached
}

// CarrierError is a dispatch the carrier refused or never answered.
type CarrierError struct {
	Code     int
	Category carrier.Category
	Message  string
	Err      error
	// Unconfirmed means the message may have been delivered. The quota
	// reservation is kept and the send must not be retried automatically.
	Unconfirmed bool
}

func newCarrierError(err error) *CarrierError {
	ce, ok := carrier.AsError(err)
	if !ok {
		ce = carrier.NewUnconfirmedError(carrier.CodeTransport, err)
	}
	return &CarrierError{
		Code:        ce.Code,
		Category:    ce.Info.Category,
		Message:     ce.Info.Message,
		Err:         ce,
		Unconfirmed: ce.Unconfirmed,
	}
}

func (e *CarrierError) Error() string {
	return fmt.Sprintf("carrier rejected message (%d, %s): %s", e.Code, e.Category, e.Message)
}

func (e *CarrierError) Unwrap() error {
	return e.Err
}
