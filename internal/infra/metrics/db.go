package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolStats) }

var dbPoolStats = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_stats",
		Help: "Current state of the Postgres connection pool.",
	},
	[]string{"state"}, // 'total', 'idle', 'in_use', 'max'
)

// ObservePool copies a pgxpool snapshot into the gauge.
func ObservePool(s *pgxpool.Stat) {
	dbPoolStats.WithLabelValues("total").Set(float64(s.TotalConns()))
	dbPoolStats.WithLabelValues("idle").Set(float64(s.IdleConns()))
	dbPoolStats.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))
	dbPoolStats.WithLabelValues("max").Set(float64(s.MaxConns()))
}
