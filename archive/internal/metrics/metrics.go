package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal counts sanitized records by result (ok, dropped) and source (stream, http).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhawk_archive_records_total",
			Help: "Total number of records processed by the batch sanitizer",
		},
		[]string{"source", "result"},
	)

	BulkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "powerhawk_archive_bulk_failures_total",
			Help: "Total number of bulk requests that failed as a whole",
		},
	)

	BulkItemFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "powerhawk_archive_bulk_item_failures_total",
			Help: "Total number of documents rejected inside an accepted bulk request",
		},
	)
)
