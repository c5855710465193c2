package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(slotClaimsTotal, slotsFree) }

var (
	slotClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_claims_total",
			Help: "Profile slot claim attempts by outcome.",
		},
		[]string{"result"}, // 'claimed', 'insufficient', 'race'
	)

	slotsFree = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slots_free",
			Help: "Unassigned profile slots per platform.",
		},
		[]string{"platform"},
	)
)

func IncSlotClaim(result string) {
	slotClaimsTotal.WithLabelValues(norm(result)).Inc()
}

func SetSlotsFree(platform string, n int) {
	slotsFree.WithLabelValues(platform).Set(float64(n))
}
