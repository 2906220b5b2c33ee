package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/service"
)

// CreateCustomer handles POST /api/customers.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req CreateCustomerRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	c, err := h.service.Customer.Create(r.Context(), id.UserID, service.CustomerInput{
		Name:            req.Name,
		PhoneRegion:     req.PhoneRegion,
		PhoneLocal:      req.PhoneLocal,
		JobDescription:  req.JobDescription,
		ScheduledSendAt: req.ScheduledSendAt,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "create customer")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newCustomerResponse(c))
}

// ListCustomers handles GET /api/customers?status=&search=&page=&limit=.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	list, err := h.service.Customer.List(r.Context(), id.UserID, service.ListParams{
		State:  models.DeliveryState(q.Get("status")),
		Search: q.Get("search"),
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "list customers")
		return
	}

	resp := CustomerListResponse{
		Customers:  make([]CustomerResponse, 0, len(list.Customers)),
		Pagination: list.Pagination,
	}
	for _, c := range list.Customers {
		resp.Customers = append(resp.Customers, newCustomerResponse(c))
	}
	render.JSON(w, r, resp)
}

// GetCustomer handles GET /api/customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Customer.Get(r.Context(), id.UserID, customerID)
	if err != nil {
		h.writeServiceError(w, r, err, "get customer")
		return
	}
	render.JSON(w, r, newCustomerResponse(c))
}

// DeleteCustomer handles DELETE /api/customers/{id}.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	if err := h.service.Customer.Delete(r.Context(), id.UserID, customerID); err != nil {
		h.writeServiceError(w, r, err, "delete customer")
		return
	}
	render.NoContent(w, r)
}

// ScheduleCustomer handles POST /api/customers/{id}/schedule.
func (h *Handler) ScheduleCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	c, err := h.service.Customer.Schedule(r.Context(), id.UserID, customerID, req.ScheduledSendAt)
	if err != nil {
		h.writeServiceError(w, r, err, "schedule customer")
		return
	}
	render.JSON(w, r, newCustomerResponse(c))
}

// UnsubscribeCustomer handles POST /api/customers/{id}/unsubscribe.
func (h *Handler) UnsubscribeCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Customer.Unsubscribe(r.Context(), id.UserID, customerID)
	if err != nil {
		h.writeServiceError(w, r, err, "unsubscribe customer")
		return
	}
	render.JSON(w, r, newCustomerResponse(c))
}

// CustomerMessages handles GET /api/customers/{id}/messages.
func (h *Handler) CustomerMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	msgs, err := h.service.Customer.Messages(r.Context(), id.UserID, customerID, queryInt(q.Get("page")), queryInt(q.Get("limit")))
	if err != nil {
		h.writeServiceError(w, r, err, "list messages")
		return
	}

	resp := MessageListResponse{Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, newMessageResponse(m))
	}
	render.JSON(w, r, resp)
}

// SendReviewRequest handles POST /api/customers/{id}/send.
func (h *Handler) SendReviewRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req SendRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	result, err := h.service.Dispatch.Send(r.Context(), id.UserID, customerID, req.ConsentConfirmed)
	if err != nil {
		h.writeServiceError(w, r, err, "send review request")
		return
	}
	render.JSON(w, r, result)
}

// queryInt parses an optional positive integer; anything else is 0 so the
// service applies its default.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
