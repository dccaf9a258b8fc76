package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts raw packets by ingress (http, nats) and status.
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhawk_enrich_packets_total",
			Help: "Total number of raw packets received",
		},
		[]string{"source", "status"},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "powerhawk_enrich_publish_errors_total",
			Help: "Total number of enriched events that failed to publish",
		},
	)

	// RegistryFallbacks counts lookups that resolved to defaults, by reason.
	RegistryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhawk_enrich_registry_fallbacks_total",
			Help: "Total number of registry lookups that fell back to defaults",
		},
		[]string{"reason"},
	)

	EnrichDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "powerhawk_enrich_duration_seconds",
			Help:    "Duration of enrichment including publish in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
