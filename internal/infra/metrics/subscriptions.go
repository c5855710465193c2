package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionTransitionsTotal,
		conflictRetriesTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions expired by the sweep or on read.",
		},
	)

	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_transitions_total",
			Help: "Subscription lifecycle steps.",
		},
		[]string{"transition"}, // 'created', 'activated', 'expired', 'renewed', 'cleaned'
	)

	conflictRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflict_retries_total",
			Help: "Operations retried after losing a concurrency race.",
		},
		[]string{"op"},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionTransition(transition string) {
	subscriptionTransitionsTotal.WithLabelValues(norm(transition)).Inc()
}

func IncConflictRetry(op string) {
	conflictRetriesTotal.WithLabelValues(op).Inc()
}
