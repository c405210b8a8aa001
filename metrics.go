package trendwire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendwire_feed_fetches_total",
		Help: "Feed fetch outcomes by result (success, not_modified, cache_hit, error).",
	}, []string{"result"})

	cacheErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendwire_cache_errors_total",
		Help: "Cache read/write failures downgraded to misses.",
	})

	itemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendwire_items_processed_total",
		Help: "Normalized items by disposition (kept, filtered, skipped, expired).",
	}, []string{"disposition"})

	entitiesPromotedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendwire_entities_promoted_total",
		Help: "Candidate names promoted into the entity registry.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trendwire_run_duration_seconds",
		Help:    "Wall time of one full aggregation cycle.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
