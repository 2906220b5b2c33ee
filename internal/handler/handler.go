// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/auth"
	"github.com/popeskul/review-sms/internal/middleware"
	"github.com/popeskul/review-sms/internal/service"
)

// maxWebhookBody bounds billing payloads read into memory.
const maxWebhookBody = 1 << 20

// BillingWebhook applies signed billing provider events.
type BillingWebhook interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// RequestVerifier authenticates carrier callbacks. The form must already be
// parsed.
type RequestVerifier interface {
	Verify(r *http.Request) bool
}

type Handler struct {
	service  *service.Service
	billing  BillingWebhook
	verifier RequestVerifier
	logger   *zap.Logger
}

// Option customises a Handler.
type Option func(*Handler)

// WithBilling enables the billing webhook endpoint.
func WithBilling(b BillingWebhook) Option {
	return func(h *Handler) { h.billing = b }
}

// WithCarrierVerifier makes carrier callbacks require a valid signature.
func WithCarrierVerifier(v RequestVerifier) Option {
	return func(h *Handler) { h.verifier = v }
}

func NewHandler(svc *service.Service, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: svc,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	middleware.WriteError(w, r, statusCode, errorCode, message)
}

// identity returns the caller stored by the auth middleware, answering 401
// itself when there is none.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.sendError(w, r, http.StatusUnauthorized, middleware.ErrorCodeUnauthorized, middleware.ErrorMessageUnauthorized)
		return nil, false
	}
	return id, true
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidCustomerID)
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// allowEmpty is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	err := render.DecodeJSON(r.Body, v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
	return false
}
