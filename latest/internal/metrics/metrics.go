package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal counts change notifications by outcome
	// (applied, conflict, skipped, ignored, failed).
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhawk_latest_notifications_total",
			Help: "Total number of change notifications processed by the latest-state maintainer",
		},
		[]string{"status"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "powerhawk_latest_batch_size",
			Help:    "Number of notifications per maintainer batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
