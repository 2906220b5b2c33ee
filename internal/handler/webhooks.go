package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/billing"
	"github.com/popeskul/review-sms/internal/middleware"
	"github.com/popeskul/review-sms/internal/service"
)

const (
	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

	stripeSignatureHeader = "Stripe-Signature"
)

type webhookAck struct {
	Received bool `json:"received"`
}

// CarrierStatus handles POST /webhooks/carrier/status. The carrier retries on
// anything but 2xx, so every outcome is acknowledged.
func (h *Handler) CarrierStatus(w http.ResponseWriter, r *http.Request) {
	if h.parseCarrierForm(r, "status") {
		cb := service.StatusCallback{
			CarrierMessageID: r.PostForm.Get("MessageSid"),
			Status:           r.PostForm.Get("MessageStatus"),
			ErrorCode:        r.PostForm.Get("ErrorCode"),
			ErrorMessage:     r.PostForm.Get("ErrorMessage"),
		}
		if cb.CarrierMessageID == "" {
			cb.CarrierMessageID = r.PostForm.Get("SmsSid")
		}
		if cb.Status == "" {
			cb.Status = r.PostForm.Get("SmsStatus")
		}

		if _, err := h.service.Webhook.HandleStatus(r.Context(), cb); err != nil {
			h.logger.Error("Failed to apply status callback",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("carrier_message_id", cb.CarrierMessageID),
				zap.Error(err))
		}
	}

	render.JSON(w, r, webhookAck{Received: true})
}

// CarrierInbound handles POST /webhooks/carrier/inbound and answers with an
// empty TwiML document so the carrier sends no automatic reply.
func (h *Handler) CarrierInbound(w http.ResponseWriter, r *http.Request) {
	if h.parseCarrierForm(r, "inbound") {
		msg := service.InboundMessage{
			From: r.PostForm.Get("From"),
			Body: r.PostForm.Get("Body"),
		}
		if _, err := h.service.Webhook.HandleInbound(r.Context(), msg); err != nil {
			h.logger.Error("Failed to apply inbound message",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, emptyTwiML)
}

// parseCarrierForm reports whether the callback should be processed.
func (h *Handler) parseCarrierForm(r *http.Request, kind string) bool {
	logger := h.logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("kind", kind),
	)

	if err := r.ParseForm(); err != nil {
		logger.Warn("Malformed carrier callback", zap.Error(err))
		return false
	}
	if h.verifier != nil && !h.verifier.Verify(r) {
		logger.Warn("Carrier callback failed signature check")
		return false
	}
	return true
}

// BillingWebhook handles POST /webhooks/billing.
func (h *Handler) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.sendError(w, r, http.StatusServiceUnavailable, middleware.ErrorCodeInternal, errorMessageBillingUnavailable)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidSignature, errorMessageInvalidSignature)
			return
		}
		h.logger.Error("Failed to apply billing event",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, middleware.ErrorMessageInternal)
		return
	}

	render.JSON(w, r, webhookAck{Received: true})
}
