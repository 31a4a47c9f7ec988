package finder

import "github.com/prometheus/client_golang/prometheus"

// Collectors for the search engine. Usable unregistered (tests); main
// registers them via RegisterMetrics.
var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finder_searches_total",
			Help: "Searches run, by mode and outcome (ok, cached, partial, error).",
		},
		[]string{"mode", "outcome"},
	)

	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finder_upstream_calls_total",
			Help: "YouTube API calls, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	quotaUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finder_quota_units_total",
			Help: "Estimated YouTube quota units consumed, by credential.",
		},
		[]string{"credential"},
	)

	rotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finder_credential_rotations_total",
			Help: "Credential failovers triggered by quota or key failures.",
		},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finder_search_duration_seconds",
			Help:    "Wall-clock duration of uncached searches.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics attaches all finder collectors to the given registerer.
// Call once at startup.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(searchesTotal, upstreamCalls, quotaUnits, rotationsTotal, searchDuration)
}
