package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsConfirmedTotal,
		ordersTotal,
	)
}

var (
	paymentsConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Payment confirmations by outcome (recorded/duplicate/rejected).",
		},
		[]string{"status"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Renewal orders handed to the order collaborator, by result.",
		},
		[]string{"result"}, // 'created', 'failed', 'dropped'
	)
)

func IncPaymentConfirmed(status string) {
	paymentsConfirmedTotal.WithLabelValues(norm(status)).Inc()
}

func IncOrder(result string) {
	ordersTotal.WithLabelValues(norm(result)).Inc()
}
