// Package maintainer folds time-series change notifications into the
// per-device latest-state view.
package maintainer

import (
	"context"
	"errors"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/latest/internal/changefeed"
	"github.com/telhawk-systems/powerhawk/latest/internal/metrics"
	"github.com/telhawk-systems/powerhawk/latest/internal/repository"
)

// Result summarizes one batch.
type Result struct {
	Applied   int
	Conflicts int
	Skipped   int
	Ignored   int
	Failed    int
}

// Maintainer applies notifications with conditional writes, so the final
// state does not depend on arrival order.
type Maintainer struct {
	store  repository.LatestStore
	policy models.EnrichmentPolicy
	logger *logging.Logger
}

// New creates a Maintainer.
func New(store repository.LatestStore, policy models.EnrichmentPolicy, logger *logging.Logger) *Maintainer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Maintainer{store: store, policy: policy, logger: logger}
}

// Handle implements changefeed.Handler.
func (m *Maintainer) Handle(ctx context.Context, batch []changefeed.Notification) {
	m.HandleBatch(ctx, batch)
}

// HandleBatch applies every notification. Nothing here aborts the batch:
// removals are ignored, incomplete images skipped, stale writes dropped and
// store failures logged.
func (m *Maintainer) HandleBatch(ctx context.Context, batch []changefeed.Notification) Result {
	metrics.BatchSize.Observe(float64(len(batch)))

	var res Result
	for _, n := range batch {
		if !n.IsUpsert() {
			res.Ignored++
			metrics.NotificationsTotal.WithLabelValues("ignored").Inc()
			continue
		}

		row, ok := m.BuildRow(n.NewImage)
		if !ok {
			res.Skipped++
			metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
			m.logger.DebugContext(ctx, "skipping row image without identity")
			continue
		}

		err := m.store.PutIfNewer(ctx, row)
		switch {
		case err == nil:
			res.Applied++
			metrics.NotificationsTotal.WithLabelValues("applied").Inc()
		case errors.Is(err, repository.ErrConditionFailed):
			res.Conflicts++
			metrics.NotificationsTotal.WithLabelValues("conflict").Inc()
		default:
			res.Failed++
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			m.logger.ErrorContext(ctx, "latest-state write failed",
				logging.PlantID(row.PlantID),
				logging.MachineID(row.MachineID),
				logging.Timestamp(row.LastTimestamp),
				logging.Error(err),
			)
		}
	}
	return res
}

// BuildRow projects a time-series row image onto the latest-state row.
// ok is false when plant, machine or timestamp is missing.
func (m *Maintainer) BuildRow(image models.RawPacket) (models.LatestStateRow, bool) {
	plantID, okPlant := models.String(image[models.AttrPlantID]).Get()
	machineID, okMachine := models.String(image[models.AttrMachineID]).Get()
	ts, okTS := models.Int(image[models.AttrTimestamp]).Get()
	if !okPlant || !okMachine || !okTS {
		return models.LatestStateRow{}, false
	}

	row := models.LatestStateRow{
		PlantMachineID: models.PlantMachineID(plantID, machineID),
		PlantID:        plantID,
		MachineID:      machineID,
		LastTimestamp:  ts,
		MacID:          models.String(image[models.AttrMacID]),
		KW:             models.Float(image[models.AttrKW]),
		KVAr:           models.Float(image[models.AttrKVAr]),
		KVA:            models.Float(image[models.AttrKVA]),
	}
	if m.policy.DerivesMetrics() {
		row.PowerFactor = models.Float(image[models.AttrPowerFactor])
		if u, ok := models.Int(image[models.AttrUtilization]).Get(); ok {
			row.Utilization = models.Some(int(u))
		}
	}
	return row, true
}
