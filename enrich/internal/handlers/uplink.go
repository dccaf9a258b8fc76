package handlers

import (
	"context"
	"errors"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/enrich/internal/enricher"
	"github.com/telhawk-systems/powerhawk/enrich/internal/metrics"
)

// RawProcessor decodes and processes one raw uplink payload.
type RawProcessor interface {
	ProcessRaw(ctx context.Context, data []byte) (enricher.Result, error)
}

// UplinkHandler consumes device uplinks from the raw NATS subject.
type UplinkHandler struct {
	processor RawProcessor
	logger    *logging.Logger
}

// NewUplinkHandler creates an UplinkHandler.
func NewUplinkHandler(processor RawProcessor, logger *logging.Logger) *UplinkHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &UplinkHandler{processor: processor, logger: logger}
}

// Handle implements messaging.MessageHandler. Malformed payloads are dropped;
// publish failures are returned to the subscriber.
func (h *UplinkHandler) Handle(ctx context.Context, msg *messaging.Message) error {
	if _, err := h.processor.ProcessRaw(ctx, msg.Data); err != nil {
		if errors.Is(err, models.ErrMalformedRecord) {
			metrics.PacketsTotal.WithLabelValues("nats", "malformed").Inc()
			h.logger.Debug("dropping malformed uplink", logging.Subject(msg.Subject), logging.Error(err))
			return nil
		}
		metrics.PacketsTotal.WithLabelValues("nats", "publish_error").Inc()
		return err
	}
	metrics.PacketsTotal.WithLabelValues("nats", "accepted").Inc()
	return nil
}
