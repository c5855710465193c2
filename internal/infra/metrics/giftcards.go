package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		giftCardsRedeemedTotal,
		giftCardDaysAddedTotal,
		redemptionsFailedTotal,
		giftCardsExpiredTotal,
	)
}

var (
	giftCardsRedeemedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_redeemed_total",
			Help: "Gift cards consumed by successful redemptions.",
		},
		[]string{"platform"},
	)

	giftCardDaysAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "giftcard_days_added_total",
			Help: "Account days granted through gift card redemption.",
		},
	)

	redemptionsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_failed_total",
			Help: "Rejected redemption attempts by reason code.",
		},
		[]string{"reason"},
	)

	giftCardsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "giftcards_expired_total",
			Help: "Unused gift cards flipped to EXPIRED by the sweep.",
		},
	)
)

func ObserveRedemption(platform string, cards, days int) {
	giftCardsRedeemedTotal.WithLabelValues(norm(platform)).Add(float64(cards))
	giftCardDaysAddedTotal.Add(float64(days))
}

func IncRedemptionFailed(reason string) {
	redemptionsFailedTotal.WithLabelValues(norm(reason)).Inc()
}

func IncGiftCardsExpired(n int64) {
	giftCardsExpiredTotal.Add(float64(n))
}
