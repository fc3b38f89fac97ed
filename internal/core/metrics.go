// AngelaMos | 2026
// metrics.go

package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "localmart"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_created_total",
			Help:      "Orders successfully created.",
		},
	)

	OrderStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "order_status_changes_total",
			Help:      "Order status transitions by target status and source.",
		},
		[]string{"status", "source"},
	)

	PaymentWebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payment_webhook_events_total",
			Help:      "Payment processor webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	DeliveryPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_polls_total",
			Help:      "Courier status polls by outcome.",
		},
		[]string{"outcome"},
	)

	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by outcome.",
		},
		[]string{"outcome"},
	)

	AccessDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "access_decisions_total",
			Help:      "Rule evaluations by collection, operation and result.",
		},
		[]string{"collection", "operation", "allowed"},
	)
)
