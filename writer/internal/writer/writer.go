// Package writer persists enriched stream records into the bucketed
// time-series store.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/writer/internal/bucket"
	"github.com/telhawk-systems/powerhawk/writer/internal/metrics"
	"github.com/telhawk-systems/powerhawk/writer/internal/repository"
)

// ErrStoreUnavailable is returned when every write of a non-empty batch failed.
// The transport redelivers the whole batch; upserts make that safe.
var ErrStoreUnavailable = errors.New("time-series store unavailable")

// Config holds the writer settings.
type Config struct {
	Policy     models.EnrichmentPolicy
	NumBuckets int
	Retention  time.Duration
	RequireKW  bool
}

// BatchResult summarizes one batch.
type BatchResult struct {
	Written int
	Skipped int
	Failed  int
}

// Writer turns stream records into time-series rows.
type Writer struct {
	cfg    Config
	store  repository.TimeSeriesStore
	logger *logging.Logger
	now    func() time.Time
}

// New creates a Writer.
func New(cfg Config, store repository.TimeSeriesStore, logger *logging.Logger) *Writer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{cfg: cfg, store: store, logger: logger, now: time.Now}
}

// HandleBatch implements messaging.BatchHandler.
func (w *Writer) HandleBatch(ctx context.Context, msgs []*messaging.Message) error {
	records := make([][]byte, len(msgs))
	for i, msg := range msgs {
		records[i] = msg.Data
	}
	_, err := w.WriteBatch(ctx, records)
	return err
}

// WriteBatch writes every valid record. Undecodable records, records that
// fail validation and rows the store rejects are skipped. Individual write failures are logged; only a
// batch in which nothing could be written returns ErrStoreUnavailable.
func (w *Writer) WriteBatch(ctx context.Context, records [][]byte) (BatchResult, error) {
	start := w.now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	ttl := start.Add(w.cfg.Retention).Unix()

	var res BatchResult
	var lastErr error
	for _, data := range records {
		p, err := models.DecodeRecord(data)
		if err != nil {
			res.Skipped++
			metrics.RecordsTotal.WithLabelValues("malformed").Inc()
			w.logger.DebugContext(ctx, "skipping undecodable record", logging.Error(err))
			continue
		}

		row, ok := w.BuildRow(p, ttl)
		if !ok {
			res.Skipped++
			metrics.RecordsTotal.WithLabelValues("missing_kw").Inc()
			continue
		}

		if err := w.store.Upsert(ctx, row); err != nil {
			if errors.Is(err, repository.ErrRejected) {
				res.Skipped++
				metrics.RecordsTotal.WithLabelValues("rejected").Inc()
				w.logger.WarnContext(ctx, "time-series row rejected",
					logging.PlantID(row.PlantID),
					logging.MachineID(row.MachineID),
					logging.Error(err),
				)
				continue
			}
			res.Failed++
			lastErr = err
			metrics.RecordsTotal.WithLabelValues("failed").Inc()
			w.logger.WarnContext(ctx, "time-series write failed",
				logging.PlantID(row.PlantID),
				logging.MachineID(row.MachineID),
				logging.Timestamp(row.Timestamp),
				logging.Error(err),
			)
			continue
		}
		res.Written++
		metrics.RecordsTotal.WithLabelValues("written").Inc()
	}

	if res.Failed > 0 && res.Written == 0 {
		return res, fmt.Errorf("%w: %d writes failed: %v", ErrStoreUnavailable, res.Failed, lastErr)
	}
	return res, nil
}

// BuildRow maps a decoded event onto a row with the given ttl. ok is false
// when kw is required and absent.
func (w *Writer) BuildRow(p models.RawPacket, ttl int64) (models.TimeSeriesRow, bool) {
	kw := models.Float(p["kw"])
	if w.cfg.RequireKW && !kw.IsPresent() {
		return models.TimeSeriesRow{}, false
	}

	plantID := models.String(p["plantId"]).OrElse(models.Unknown)
	machineID := models.String(p["machineId"]).OrElse(models.Unknown)

	ts, ok := models.Int(p["receivedAt"]).Get()
	if !ok || ts < 0 {
		ts = w.now().UnixMilli()
	}

	row := models.TimeSeriesRow{
		PlantMachineID: models.PlantMachineID(plantID, machineID),
		Timestamp:      ts,
		PlantID:        plantID,
		MachineID:      machineID,
		MacID:          models.String(p["macId"]),
		PacketID:       models.String(p["packetId"]),
		SlaveID:        models.String(p["slaveId"]),
		SlaveName:      models.String(p["slaveName"]),
		KW:             kw,
		KVAr:           models.Float(p["kvar"]),
		KVA:            models.Float(p["kva"]),
		PlantBucket:    bucket.PlantBucket(plantID, machineID, w.cfg.NumBuckets),
		TTL:            ttl,
	}
	if w.cfg.Policy.DerivesMetrics() {
		row.PowerFactor = models.Float(p["powerFactor"])
		if u, ok := models.Int(p["utilization"]).Get(); ok {
			row.Utilization = models.Some(int(u))
		}
	}
	return row, true
}
