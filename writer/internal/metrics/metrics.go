package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal counts stream records by outcome (written, malformed, missing_kw, failed).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhawk_writer_records_total",
			Help: "Total number of stream records processed by the time-series writer",
		},
		[]string{"status"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "powerhawk_writer_batch_duration_seconds",
			Help:    "Duration of one writer batch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReapedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "powerhawk_writer_reaped_rows_total",
			Help: "Total number of expired time-series rows deleted by the reaper",
		},
	)
)
