// Package enricher turns raw device packets into canonical enriched events and
// publishes them onto the partitioned telemetry stream.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/enrich/internal/deriver"
	"github.com/telhawk-systems/powerhawk/enrich/internal/metrics"
	"github.com/telhawk-systems/powerhawk/enrich/internal/registry"
)

// ErrPublish wraps transport failures. It is not retried here; the caller
// (HTTP client or NATS redelivery) owns retries.
var ErrPublish = errors.New("publish enriched event")

// Resolver looks up registry identity for a device.
type Resolver interface {
	Resolve(ctx context.Context, macID models.Optional[string]) registry.Entry
}

// Config holds the deployment-wide enrichment settings.
type Config struct {
	Policy             models.EnrichmentPolicy
	DefaultThresholdKW float64
	SubjectPrefix      string
	Shards             int
}

// Result is one enriched event with its stream routing.
type Result struct {
	Event        models.EnrichedEvent
	PartitionKey string
	Subject      string
}

// Stage combines metric derivation and registry resolution.
type Stage struct {
	cfg       Config
	resolver  Resolver
	publisher messaging.Publisher
	logger    *logging.Logger
	now       func() time.Time
}

// NewStage creates an enrichment stage.
func NewStage(cfg Config, resolver Resolver, publisher messaging.Publisher, logger *logging.Logger) *Stage {
	if logger == nil {
		logger = logging.Default()
	}
	return &Stage{
		cfg:       cfg,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Enrich builds the enriched event for p without publishing it.
func (s *Stage) Enrich(ctx context.Context, p models.RawPacket) Result {
	macID := p.FirstString("macId", "MACID")
	plantID := p.FirstString("plantId")
	machineID := p.FirstString("machineId", "slaveName")

	entry := s.resolver.Resolve(ctx, macID)
	plantID = plantID.Or(entry.PlantID)
	machineID = machineID.Or(entry.MachineID)

	event := models.EnrichedEvent{
		PacketID:   p.FirstString("packetId", "PacketID"),
		MacID:      macID,
		SlaveName:  p.FirstString("slaveName", "SlaveName"),
		SlaveID:    p.FirstString("slaveId", "SlaveID"),
		PlantID:    plantID.OrElse(models.Unknown),
		MachineID:  machineID.OrElse(models.Unknown),
		ReceivedAt: s.receivedAt(p),
	}

	if s.cfg.Policy.DerivesMetrics() {
		m := deriver.Derive(p, entry.UtilThresholdKW.OrElse(s.cfg.DefaultThresholdKW))
		event.KW, event.KVAr, event.KVA = m.KW, m.KVAr, m.KVA
		event.PowerFactor = m.PowerFactor
		event.Utilization = models.Some(m.Utilization)
	} else {
		r := deriver.Read(p)
		event.KW, event.KVAr, event.KVA = r.KW, r.KVAr, r.KVA
	}

	key := models.PartitionKey(plantID, machineID, macID)
	return Result{
		Event:        event,
		PartitionKey: key,
		Subject:      messaging.EnrichedSubject(s.cfg.SubjectPrefix, key, s.cfg.Shards),
	}
}

// Process enriches p and publishes exactly one event.
func (s *Stage) Process(ctx context.Context, p models.RawPacket) (Result, error) {
	start := time.Now()
	defer func() { metrics.EnrichDuration.Observe(time.Since(start).Seconds()) }()

	res := s.Enrich(ctx, p)

	data, err := res.Event.Marshal()
	if err != nil {
		return res, err
	}

	err = s.publisher.PublishMsg(ctx, &messaging.Message{
		Subject:  res.Subject,
		Data:     data,
		Metadata: map[string]string{messaging.HeaderPartitionKey: res.PartitionKey},
	})
	if err != nil {
		metrics.PublishErrors.Inc()
		return res, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	s.logger.DebugContext(ctx, "published enriched event",
		logging.PartitionKey(res.PartitionKey),
		logging.Subject(res.Subject),
		logging.Timestamp(res.Event.ReceivedAt),
	)
	return res, nil
}

// ProcessRaw decodes a raw payload (object or JSON-string-wrapped object)
// and processes it. Undecodable payloads return models.ErrMalformedRecord.
func (s *Stage) ProcessRaw(ctx context.Context, data []byte) (Result, error) {
	p, err := models.ParsePacket(data)
	if err != nil {
		return Result{}, err
	}
	return s.Process(ctx, p)
}

// receivedAt honors an explicit non-negative payload timestamp, otherwise
// stamps the ingestion time.
func (s *Stage) receivedAt(p models.RawPacket) int64 {
	if ts, ok := models.Int(p["receivedAt"]).Get(); ok && ts >= 0 {
		return ts
	}
	return s.now().UnixMilli()
}
