package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NearbyQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearby_queries_total",
		Help: "Total nearby news queries by sort key",
	}, []string{"sort"})
	NearbyQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nearby_query_duration_seconds",
		Help:    "Nearby query execution time, cache hits included",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	NearbyCacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearby_cache_requests_total",
		Help: "Nearby page cache lookups by result (hit, miss, error)",
	}, []string{"result"})
	NewsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "news_created_total",
		Help: "Total news items created",
	})
	LocationPingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "location_pings_total",
		Help: "Location pings by mode (created, updated)",
	}, []string{"mode"})
	ValidationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_errors_total",
		Help: "Rejected client inputs by error kind",
	}, []string{"kind"})
	RetentionSweptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_swept_total",
		Help: "Expired records deleted by the retention sweeper",
	}, []string{"collection"})
	RetentionSweepFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_sweep_failures_total",
		Help: "Retention sweeps that ended in an error",
	})
)

func init() {
	prometheus.MustRegister(NearbyQueriesTotal)
	prometheus.MustRegister(NearbyQueryDuration)
	prometheus.MustRegister(NearbyCacheRequestsTotal)
	prometheus.MustRegister(NewsCreatedTotal)
	prometheus.MustRegister(LocationPingsTotal)
	prometheus.MustRegister(ValidationErrorsTotal)
	prometheus.MustRegister(RetentionSweptTotal)
	prometheus.MustRegister(RetentionSweepFailuresTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
