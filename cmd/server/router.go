package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/popeskul/review-sms/internal/handler"
)

// routes carries the handler and the middleware each route group needs.
type routes struct {
	handler *handler.Handler
	// chain wraps every route; it runs inside the router so the route
	// pattern is known when requests are logged.
	chain func(http.Handler) http.Handler
	// auth guards /api with bearer tokens.
	auth func(http.Handler) http.Handler
	// internal guards /internal with the cron shared secret.
	internal func(http.Handler) http.Handler
	metrics  http.Handler
}

func setupRouter(rt routes) http.Handler {
	h := rt.handler
	r := chi.NewRouter()
	r.Use(rt.chain)

	r.Get("/health", h.HealthCheck)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.auth)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCustomer)
				r.Delete("/", h.DeleteCustomer)
				r.Post("/schedule", h.ScheduleCustomer)
				r.Post("/unsubscribe", h.UnsubscribeCustomer)
				r.Post("/send", h.SendReviewRequest)
				r.Get("/messages", h.CustomerMessages)
			})
		})

		r.Get("/account", h.GetAccount)
		r.Put("/account", h.UpdateAccount)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/carrier/status", h.CarrierStatus)
		r.Post("/carrier/inbound", h.CarrierInbound)
		r.Post("/billing", h.BillingWebhook)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(rt.internal)

		r.Post("/sweep", h.RunSweep)
		r.Post("/reset-monthly", h.ResetMonthlyCounters)
		r.Get("/scheduler", h.SchedulerStats)
		r.Post("/scheduler/start", h.StartScheduler)
		r.Post("/scheduler/stop", h.StopScheduler)
	})

	return r
}
