package simulator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
)

// Stats summarizes one simulation run.
type Stats struct {
	Published int `json:"published"`
	Invalid   int `json:"invalid"`
	Failed    int `json:"failed"`
}

// Runner publishes generated packets on the device uplink subjects.
type Runner struct {
	publisher messaging.Publisher
	rawFilter string
	gen       *Generator
	logger    *logging.Logger
}

// NewRunner creates a Runner. rawFilter is the enrich raw subject filter,
// e.g. "telemetry.raw.>".
func NewRunner(pub messaging.Publisher, rawFilter string, gen *Generator, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{publisher: pub, rawFilter: rawFilter, gen: gen, logger: logger}
}

// Run publishes count packets, pausing interval between them. It stops early
// when ctx is done and returns the context error.
func (r *Runner) Run(ctx context.Context, count int, interval time.Duration) (Stats, error) {
	var stats Stats

	for i := 0; i < count; i++ {
		dev, packet, invalid := r.gen.Next()

		data, err := json.Marshal(packet)
		if err != nil {
			stats.Failed++
			continue
		}

		subject := messaging.RawDeviceSubject(r.rawFilter, dev.MacID)
		if err := r.publisher.Publish(ctx, subject, data); err != nil {
			stats.Failed++
			r.logger.WarnContext(ctx, "publish failed", logging.Subject(subject), logging.Error(err))
		} else {
			stats.Published++
			if invalid {
				stats.Invalid++
			}
		}

		if interval > 0 && i < count-1 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(interval):
			}
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
