package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webshop_orders_completed_total",
			Help: "Orders committed to the ledger",
		},
	)
	OrdersRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshop_orders_rejected_total",
			Help: "Orders that did not reach the ledger, by error kind",
		},
		[]string{"kind"},
	)
	ShipmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshop_shipments_total",
			Help: "Shipment registration attempts, by outcome",
		},
		[]string{"status"},
	)
	PickupFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webshop_pickup_fallback_total",
			Help: "Pickup point listings served from the built-in fallback",
		},
	)
	PaymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshop_payment_intents_total",
			Help: "Payment intent creations, by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

func init() {
	prometheus.MustRegister(OrdersCompletedTotal)
	prometheus.MustRegister(OrdersRejectedTotal)
	prometheus.MustRegister(ShipmentsTotal)
	prometheus.MustRegister(PickupFallbackTotal)
	prometheus.MustRegister(PaymentIntentsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}
