package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
)

// JetStreamClient extends Client with JetStream persistence capabilities.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	// Name is the stream name.
	Name string

	// Subjects are the subjects this stream captures.
	Subjects []string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// Retention policy (LimitsPolicy, InterestPolicy, WorkQueuePolicy).
	Retention jetstream.RetentionPolicy

	// Storage type (FileStorage, MemoryStorage).
	Storage jetstream.StorageType
}

// ConsumerConfig defines a durable pull consumer.
type ConsumerConfig struct {
	// Name is the durable consumer name.
	Name string

	// FilterSubject filters which messages this consumer receives.
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver is maximum delivery attempts; -1 means unlimited.
	MaxDeliver int

	// MaxAckPending is maximum unacknowledged messages.
	MaxAckPending int
}

// TelemetryStream returns the enriched telemetry stream definition. The
// writer and the archive consume it independently, so retention is by limits.
func TelemetryStream(name, subjectPrefix string, maxAge time.Duration) StreamConfig {
	return StreamConfig{
		Name:      name,
		Subjects:  []string{messaging.EnrichedWildcard(subjectPrefix)},
		MaxAge:    maxAge,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
}

// DefaultConsumerConfig returns sensible defaults for a consumer.
func DefaultConsumerConfig(name, filterSubject string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: filterSubject,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
		MaxAckPending: 1000,
	}
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable pull consumer.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}

	return consumer, nil
}

// PublishMsg publishes to JetStream and waits for the stream acknowledgment,
// so a persisted-or-failed outcome is known to the caller.
func (c *JetStreamClient) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	if _, err := c.js.PublishMsg(ctx, toNATS(msg)); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Publish publishes raw data to JetStream and waits for acknowledgment.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	return c.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

// BatchConsumer returns a pull loop over an existing durable consumer.
func (c *JetStreamClient) BatchConsumer(ctx context.Context, streamName, consumerName string, batchSize int, wait time.Duration) (*BatchConsumer, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}
	consumer, err := stream.Consumer(ctx, consumerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", consumerName, err)
	}
	return &BatchConsumer{
		consumer:  consumer,
		batchSize: batchSize,
		wait:      wait,
		logger:    c.logger.With(slog.String("consumer", consumerName)),
	}, nil
}

// BatchConsumer pulls fixed-size batches from a durable consumer. Each batch is
// handed to the handler as a unit and acknowledged or NAKed as a unit.
type BatchConsumer struct {
	consumer  jetstream.Consumer
	batchSize int
	wait      time.Duration
	logger    *slog.Logger
}

// FetchLoop fetches and dispatches batches until ctx is cancelled.
func (b *BatchConsumer) FetchLoop(ctx context.Context, handler messaging.BatchHandler) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		batch, err := b.consumer.Fetch(b.batchSize, jetstream.FetchMaxWait(b.wait))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("fetch failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var fetched []fetchedMsg
		for msg := range batch.Messages() {
			fetched = append(fetched, msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			b.logger.Warn("fetch batch ended with error", logging.Error(err), logging.Count(len(fetched)))
		}
		if len(fetched) == 0 {
			continue
		}

		dispatchBatch(ctx, fetched, handler, b.logger)
	}
}

// fetchedMsg is the part of jetstream.Msg the batch loop relies on.
type fetchedMsg interface {
	Subject() string
	Data() []byte
	Headers() nats.Header
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	Nak() error
}

// dispatchBatch runs handler over msgs and settles them as one unit.
func dispatchBatch(ctx context.Context, msgs []fetchedMsg, handler messaging.BatchHandler, logger *slog.Logger) {
	converted := make([]*messaging.Message, len(msgs))
	for i, msg := range msgs {
		converted[i] = fromJetStream(msg)
	}

	if err := handler(ctx, converted); err != nil {
		logger.Error("batch handler failed, requesting redelivery", logging.Error(err), logging.Count(len(msgs)))
		for _, msg := range msgs {
			_ = msg.Nak()
		}
		return
	}

	for _, msg := range msgs {
		if err := msg.Ack(); err != nil {
			logger.Warn("ack failed", logging.Subject(msg.Subject()), logging.Error(err))
		}
	}
}

func fromJetStream(msg fetchedMsg) *messaging.Message {
	m := &messaging.Message{
		Subject:  msg.Subject(),
		Data:     msg.Data(),
		Metadata: headerMap(msg.Headers()),
	}
	if meta, err := msg.Metadata(); err == nil && meta != nil {
		m.Sequence = meta.Sequence.Stream
		m.Timestamp = meta.Timestamp
	}
	return m
}
