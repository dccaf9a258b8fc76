// Package changefeed receives time-series row changes from PostgreSQL
// LISTEN/NOTIFY and groups them into batches.
//
// The feed is not replayable: notifications raised while no listener is
// connected are lost.
package changefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/models"
)

// Operation tags carried by a notification.
const (
	OpInsert = "INSERT"
	OpModify = "MODIFY"
	OpRemove = "REMOVE"
)

const reconnectDelay = 2 * time.Second

// Notification is one row change. NewImage is nil for removals.
type Notification struct {
	Op       string           `json:"op"`
	NewImage models.RawPacket `json:"new_image"`
}

// IsUpsert reports whether the change inserted or modified a row.
func (n Notification) IsUpsert() bool {
	return n.Op == OpInsert || n.Op == OpModify
}

// Decode parses a notification payload. Numbers are kept as json.Number so
// millisecond timestamps survive intact.
func Decode(payload []byte) (Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var n Notification
	if err := dec.Decode(&n); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}
	return n, nil
}

// Handler processes one batch of notifications.
type Handler func(ctx context.Context, batch []Notification)

// Listener holds a dedicated connection LISTENing on one channel.
type Listener struct {
	connString string
	channel    string
	maxBatch   int
	maxWait    time.Duration
	logger     *slog.Logger
}

// NewListener creates a Listener. Batches are flushed when they reach
// maxBatch notifications or maxWait after their first notification.
func NewListener(connString, channel string, maxBatch int, maxWait time.Duration, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBatch < 1 {
		maxBatch = 1
	}
	return &Listener{
		connString: connString,
		channel:    channel,
		maxBatch:   maxBatch,
		maxWait:    maxWait,
		logger:     logger.With(slog.String("channel", channel)),
	}
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
func (l *Listener) Run(ctx context.Context, handler Handler) error {
	notifications := make(chan Notification, l.maxBatch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		Batch(ctx, notifications, l.maxBatch, l.maxWait, handler)
	}()

	for {
		err := l.receive(ctx, notifications)
		if ctx.Err() != nil {
			break
		}
		l.logger.Warn("change feed connection lost, reconnecting", logging.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
		if ctx.Err() != nil {
			break
		}
	}

	<-done
	return nil
}

func (l *Listener) receive(ctx context.Context, out chan<- Notification) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info("listening for row changes")

	for {
		pn, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		n, err := Decode([]byte(pn.Payload))
		if err != nil {
			l.logger.Debug("dropping undecodable notification", logging.Error(err))
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Batch groups notifications from in and calls handler for each batch until
// in is closed or ctx is cancelled. A pending partial batch is flushed on exit.
func Batch(ctx context.Context, in <-chan Notification, maxBatch int, maxWait time.Duration, handler Handler) {
	batch := make([]Notification, 0, maxBatch)
	var timer *time.Timer
	var timeout <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timeout = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		handler(context.WithoutCancel(ctx), batch)
		batch = make([]Notification, 0, maxBatch)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case n, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, n)
			if len(batch) >= maxBatch {
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(maxWait)
				timeout = timer.C
			}
		case <-timeout:
			timer, timeout = nil, nil
			flush()
		}
	}
}
