// Package metrics holds the Prometheus collectors for the kiosk ordering flow.
// Collectors register with the default registry, which /metrics serves.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_sessions_started_total",
			Help: "Kiosk sessions started",
		},
	)

	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_orders_created_total",
			Help: "Orders created from a kiosk cart",
		},
		[]string{"service_type"},
	)

	OrderCreateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_order_create_failures_total",
			Help: "Rejected or failed order creations by error kind",
		},
		[]string{"kind"},
	)

	OrderNumberRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_order_number_retries_total",
			Help: "Order creations retried after an order number collision",
		},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_order_transitions_total",
			Help: "Order status transition attempts",
		},
		[]string{"transition", "changed"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		OrdersCreated,
		OrderCreateFailures,
		OrderNumberRetries,
		OrderTransitions,
	)
}

// ObserveTransition counts one status transition attempt.
func ObserveTransition(transition string, changed bool) {
	OrderTransitions.WithLabelValues(transition, strconv.FormatBool(changed)).Inc()
}
