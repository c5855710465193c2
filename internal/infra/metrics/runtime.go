package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(buildInfo, catalogCacheLookups) }

// CacheOutcome labels one catalog cache lookup.
type CacheOutcome string

const (
	CacheHit   CacheOutcome = "hit"
	CacheMiss  CacheOutcome = "miss"
	CacheError CacheOutcome = "error" // redis failure or undecodable entry
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamshare_build_info",
			Help: "Always 1; labels carry the running build.",
		},
		[]string{"version", "commit", "go_version"},
	)

	catalogCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_lookups_total",
			Help: "Redis catalog lookups by entity and outcome.",
		},
		[]string{"entity", "outcome"},
	)
)

// SetBuildInfo replaces the build series, so only one is ever exported.
func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func ObserveCacheLookup(entity string, outcome CacheOutcome) {
	catalogCacheLookups.WithLabelValues(norm(entity), string(outcome)).Inc()
}
