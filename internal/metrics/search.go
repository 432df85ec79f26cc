package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
)

const namespace = "cardex"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Completed searches by entity, method and cache outcome",
		},
		[]string{"entity", "method", "cached"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Uncached search duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"entity", "method"},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Items returned per search page",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"entity"},
	)

	SearchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Search failures by entity and reason",
		},
		[]string{"entity", "reason"}, // "validation" / "store" / "index"
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search cache operations",
		},
		[]string{"result"}, // "hit" / "miss" / "set" / "evict"
	)

	IndexDocuments = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents held by the in-memory search index",
		},
		[]string{"entity"},
	)
)

var registerSearch sync.Once

// RegisterSearchMetrics registers the search metrics with the default registry.
func RegisterSearchMetrics() {
	registerSearch.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			SearchResults,
			SearchFailuresTotal,
			SearchCacheTotal,
			IndexDocuments,
		)
	})
}

// Search records search and index activity into the package metrics.
type Search struct{}

// SearchCompleted records one answered search.
func (Search) SearchCompleted(t entity.Type, m result.Method, cached bool, elapsed time.Duration, results int) {
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	SearchRequestsTotal.WithLabelValues(t.String(), string(m), cachedLabel).Inc()
	SearchResults.WithLabelValues(t.String()).Observe(float64(results))
	if !cached {
		SearchDuration.WithLabelValues(t.String(), string(m)).Observe(elapsed.Seconds())
	}
}

// SearchFailed records one failed search or degraded index lookup.
func (Search) SearchFailed(t entity.Type, reason string) {
	SearchFailuresTotal.WithLabelValues(t.String(), reason).Inc()
}

// IndexSize records the document count of one index.
func (Search) IndexSize(t entity.Type, n int) {
	IndexDocuments.WithLabelValues(t.String()).Set(float64(n))
}
