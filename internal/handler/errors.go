package handler

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/middleware"
	"github.com/popeskul/review-sms/internal/quota"
	"github.com/popeskul/review-sms/internal/service"
)

const (
	errorCodeInvalidRequest          = "INVALID_REQUEST"
	errorCodeValidation              = "VALIDATION_ERROR"
	errorCodeInvalidPhone            = "INVALID_PHONE"
	errorCodeConsentRequired         = "CONSENT_REQUIRED"
	errorCodeDuplicatePhone          = "DUPLICATE_PHONE"
	errorCodeNotFound                = "NOT_FOUND"
	errorCodeQuotaExceeded           = "QUOTA_EXCEEDED"
	errorCodeCarrierError            = "CARRIER_ERROR"
	errorCodeCarrierUnconfirmed      = "CARRIER_UNCONFIRMED"
	errorCodeInvalidSignature        = "INVALID_SIGNATURE"
	errorCodeSchedulerAlreadyRunning = "SCHEDULER_ALREADY_RUNNING"
	errorCodeSchedulerNotRunning     = "SCHEDULER_NOT_RUNNING"
)

const (
	errorMessageInvalidBody             = "Request body is not valid JSON"
	errorMessageInvalidCustomerID       = "Customer id must be a UUID"
	errorMessageInvalidPhone            = "Phone number is not valid for the selected region"
	errorMessageDuplicatePhone          = "A customer with this phone number already exists"
	errorMessageNotFound                = "Resource not found"
	errorMessageSchedulerAlreadyRunning = "Scheduler is already running"
	errorMessageSchedulerNotRunning     = "Scheduler is not running"
	errorMessageFailedToStartScheduler  = "Failed to start scheduler"
	errorMessageFailedToStopScheduler   = "Failed to stop scheduler"
	errorMessageInvalidSignature        = "Webhook signature verification failed"
	errorMessageBillingUnavailable      = "Billing webhooks are not configured"
)

var quotaMessages = map[quota.Reason]string{
	quota.ReasonPaymentInactive:     "An active subscription is required to send review requests",
	quota.ReasonMonthlyLimitReached: "Monthly SMS limit reached for your plan",
	quota.ReasonOptedOut:            "This customer has opted out of SMS",
	quota.ReasonCustomerCapReached:  "This customer has already received the maximum number of requests",
}

// writeServiceError maps service errors to HTTP responses. Unknown errors are
// logged and hidden behind INTERNAL_ERROR.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var (
		quotaErr   *service.QuotaError
		carrierErr *service.CarrierError
	)

	switch {
	case errors.As(err, &quotaErr):
		middleware.WriteErrorResponse(w, r, http.StatusForbidden, middleware.ErrorResponse{
			Error:   errorCodeQuotaExceeded,
			Message: quotaMessages[quotaErr.Reason],
			Reason:  string(quotaErr.Reason),
		})
	case errors.As(err, &carrierErr) && carrierErr.Unconfirmed:
		h.sendError(w, r, http.StatusGatewayTimeout, errorCodeCarrierUnconfirmed, carrierErr.Message)
	case errors.As(err, &carrierErr):
		h.sendError(w, r, http.StatusBadGateway, errorCodeCarrierError, carrierErr.Message)
	case errors.Is(err, service.ErrValidation):
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, validationMessage(err))
	case errors.Is(err, service.ErrInvalidPhone):
		h.sendError(w, r, http.StatusUnprocessableEntity, errorCodeInvalidPhone, errorMessageInvalidPhone)
	case errors.Is(err, service.ErrConsentRequired):
		h.sendError(w, r, http.StatusBadRequest, errorCodeConsentRequired, service.ErrConsentRequired.Error())
	case errors.Is(err, service.ErrDuplicatePhone):
		h.sendError(w, r, http.StatusConflict, errorCodeDuplicatePhone, errorMessageDuplicatePhone)
	case errors.Is(err, service.ErrNotFound):
		h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, errorMessageNotFound)
	default:
		h.logger.Error("Failed to "+action,
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, middleware.ErrorMessageInternal)
	}
}

// validationMessage strips the sentinel prefix, leaving "field problem".
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, service.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrValidation.Error())+2:]
	}
	return msg
}
