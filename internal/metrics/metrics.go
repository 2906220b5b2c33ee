package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewsms_dispatch_total",
			Help: "Dispatch attempts by trigger and result",
		},
		[]string{"trigger", "result"}, // manual|sweep , sent|denied|invalid|carrier_error|error
	)

	CarrierErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewsms_carrier_errors_total",
			Help: "Carrier failures by category",
		},
		[]string{"category"},
	)

	UnreconciledSendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewsms_unreconciled_sends_total",
			Help: "Sends whose carrier outcome or bookkeeping needs manual reconciliation",
		},
	)

	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewsms_webhooks_total",
			Help: "Inbound webhooks by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SweepCustomersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewsms_sweep_customers_total",
			Help: "Customers processed by the scheduled sweep by outcome",
		},
		[]string{"outcome"}, // success|error|skipped
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewsms_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewsms_http_panics_total",
			Help: "Handler panics recovered by route",
		},
		[]string{"route"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DispatchTotal,
		CarrierErrorsTotal,
		UnreconciledSendsTotal,
		WebhooksTotal,
		SweepCustomersTotal,
		HTTPRequestDuration,
		HTTPPanicsTotal,
	)
}
