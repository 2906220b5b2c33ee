package carrier

import (
	"errors"
	"fmt"
)

// Category groups carrier failures by what the user can do about them.
type Category string

const (
	CategoryInvalidNumber Category = "invalid_number"
	CategoryBlocked       Category = "recipient_blocked"
	CategoryUnreachable   Category = "carrier_unreachable"
	CategoryGeneric       Category = "generic_failure"
)

// ErrorInfo is the user-facing translation of a carrier error code.
type ErrorInfo struct {
	Category Category
	Message  string
}

const (
	// CodeTimeout marks a send that did not complete within the timeout.
	CodeTimeout = -1
	// CodeUnavailable marks a send refused locally by the circuit breaker.
	CodeUnavailable = -2
	// CodeTransport marks a network failure before the carrier answered.
	CodeTransport = -3
	// CodeAlphanumericRejected is returned when the destination does not
	// accept alphanumeric senders.
	CodeAlphanumericRejected = 21612
)

var (
	invalidNumber = ErrorInfo{
		Category: CategoryInvalidNumber,
		Message:  "The phone number is invalid or cannot receive SMS. Please check the number.",
	}
	blocked = ErrorInfo{
		Category: CategoryBlocked,
		Message:  "The recipient has opted out or their carrier blocked the message.",
	}
	unreachable = ErrorInfo{
		Category: CategoryUnreachable,
		Message:  "The SMS carrier could not be reached. Please try again later.",
	}
	unconfirmed = ErrorInfo{
		Category: CategoryUnreachable,
		Message:  "The SMS carrier did not confirm the message and it may still be delivered. Check the message history before sending again.",
	}
	fallbackInfo = ErrorInfo{
		Category: CategoryGeneric,
		Message:  "Failed to send SMS. Please verify the phone number and try again.",
	}
)

var errorTable = map[int]ErrorInfo{
	21211: invalidNumber,
	21214: invalidNumber,
	21217: invalidNumber,
	21614: invalidNumber,
	30005: invalidNumber,
	30006: invalidNumber,

	21610: blocked,
	30004: blocked,
	30007: blocked,

	20429:           unreachable,
	20500:           unreachable,
	20503:           unreachable,
	21408:           unreachable,
	21612:           unreachable,
	30003:           unreachable,
	30008:           unreachable,
	CodeTimeout:     unreachable,
	CodeUnavailable: unreachable,
	CodeTransport:   unreachable,

	30001: fallbackInfo,
	30002: fallbackInfo,
}

// Describe translates a carrier error code.
func Describe(code int) ErrorInfo {
	if info, ok := errorTable[code]; ok {
		return info
	}
	return fallbackInfo
}

// Error is a failed carrier dispatch.
type Error struct {
	Code int
	Info ErrorInfo
	Err  error
	// Unconfirmed is set when the request left the process but no answer
	// came back, so the carrier may still have accepted the message.
	Unconfirmed bool
}

func NewError(code int, err error) *Error {
	return &Error{Code: code, Info: Describe(code), Err: err}
}

// NewUnconfirmedError builds an error for a request whose outcome is unknown.
func NewUnconfirmedError(code int, err error) *Error {
	e := NewError(code, err)
	e.Unconfirmed = true
	e.Info = unconfirmed
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("carrier error %d (%s): %v", e.Code, e.Info.Category, e.Err)
	}
	return fmt.Sprintf("carrier error %d (%s)", e.Code, e.Info.Category)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure says something about the carrier's
// health rather than about the message itself.
func (e *Error) Transient() bool {
	return e.Info.Category == CategoryUnreachable && e.Code != CodeAlphanumericRejected
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
