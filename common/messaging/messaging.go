// Package messaging provides abstractions for the telemetry transport.
// Services publish and consume through these interfaces so the broker can be
// swapped for in-memory fakes in tests.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Reply is an optional subject for request/reply patterns.
	Reply string

	// Metadata contains message headers.
	Metadata map[string]string

	// Sequence is the stream sequence for persisted messages, zero otherwise.
	Sequence uint64

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// Header returns the metadata value for key, or "".
func (m *Message) Header(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// MessageHandler processes a single received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// BatchHandler processes a fetched batch. A returned error means the whole
// batch should be redelivered by the transport.
type BatchHandler func(ctx context.Context, msgs []*Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription is listening to.
	Subject() string

	// IsValid returns true if the subscription is still active.
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// Subscribe creates a fan-out subscription.
	Subscribe(subject string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe creates a load-balanced subscription. Each message is
	// handled by one member of the queue group.
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)

	// Close releases any resources and unsubscribes all active subscriptions.
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Request sends a message and waits for a response.
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*Message, error)

	// Drain gracefully closes the connection, allowing in-flight messages to complete.
	Drain() error

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}

// BatchConsumer pulls batches from a durable stream consumer until ctx is done.
type BatchConsumer interface {
	FetchLoop(ctx context.Context, handler BatchHandler) error
}
