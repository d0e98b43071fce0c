// Package observability registers the prometheus collectors shared across
// the discovery pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCalls counts successful provider calls by kind.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_engine",
		Name:      "provider_calls_total",
		Help:      "Successful provider API calls by kind.",
	}, []string{"kind"})

	// ProviderCallErrors counts failed provider calls by kind.
	ProviderCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_engine",
		Name:      "provider_call_errors_total",
		Help:      "Failed provider API calls by kind.",
	}, []string{"kind"})

	// CacheHits counts feed cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signal_engine",
		Name:      "feed_cache_hits_total",
		Help:      "Feed cache hits.",
	})

	// CacheMisses counts feed cache misses, including entries rejected by
	// the staleness ceiling.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signal_engine",
		Name:      "feed_cache_misses_total",
		Help:      "Feed cache misses.",
	})

	// QuotaUnits counts provider quota units recorded by kind.
	QuotaUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_engine",
		Name:      "quota_units_total",
		Help:      "Provider quota units recorded by call kind.",
	}, []string{"kind"})
)
