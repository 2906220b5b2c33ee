package handler

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/popeskul/review-sms/internal/service"
)

// GetAccount handles GET /api/account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	view, err := h.service.Account.Get(r.Context(), id.UserID)
	if err != nil {
		h.writeServiceError(w, r, err, "get account")
		return
	}
	render.JSON(w, r, newAccountResponse(view))
}

// UpdateAccount handles PUT /api/account.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req AccountSettingsRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	view, err := h.service.Account.UpdateSettings(r.Context(), id, service.AccountSettings{
		BusinessName:     req.BusinessName,
		ReviewLinks:      req.ReviewLinks,
		SMSTemplate:      req.SMSTemplate,
		IncludeNameInSMS: req.IncludeNameInSMS,
		IncludeJobInSMS:  req.IncludeJobInSMS,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "update account")
		return
	}
	render.JSON(w, r, newAccountResponse(view))
}
