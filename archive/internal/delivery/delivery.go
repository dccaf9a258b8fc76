// Package delivery moves sanitized stream batches into bulk storage.
package delivery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/telhawk-systems/powerhawk/archive/internal/metrics"
	"github.com/telhawk-systems/powerhawk/archive/internal/sanitizer"
	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
)

// BulkSink stores newline-terminated JSON documents.
type BulkSink interface {
	Bulk(ctx context.Context, index string, docs [][]byte) (BulkResult, error)
}

// Archiver sanitizes stream batches and ships the kept records in one bulk request.
type Archiver struct {
	sanitizer   *sanitizer.Sanitizer
	sink        BulkSink
	indexPrefix string
	logger      *logging.Logger
	now         func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(s *sanitizer.Sanitizer, sink BulkSink, indexPrefix string, logger *logging.Logger) *Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{sanitizer: s, sink: sink, indexPrefix: indexPrefix, logger: logger, now: time.Now}
}

// IndexName returns the daily index for t.
func (a *Archiver) IndexName(t time.Time) string {
	return a.indexPrefix + "-" + t.UTC().Format("2006.01.02")
}

// HandleBatch implements messaging.BatchHandler. The stream sequence is the
// record id. A failed bulk request returns an error so the batch is redelivered.
func (a *Archiver) HandleBatch(ctx context.Context, msgs []*messaging.Message) error {
	docs := make([][]byte, 0, len(msgs))
	dropped := 0
	for _, msg := range msgs {
		doc, ok := a.sanitizer.Sanitize(msg.Data)
		if !ok {
			dropped++
			a.logger.DebugContext(ctx, "dropping record", logging.RecordID(strconv.FormatUint(msg.Sequence, 10)))
			continue
		}
		docs = append(docs, doc)
	}
	metrics.RecordsTotal.WithLabelValues("stream", "dropped").Add(float64(dropped))
	metrics.RecordsTotal.WithLabelValues("stream", "ok").Add(float64(len(docs)))

	if len(docs) == 0 {
		return nil
	}

	index := a.IndexName(a.now())
	res, err := a.sink.Bulk(ctx, index, docs)
	if err != nil {
		metrics.BulkFailures.Inc()
		return fmt.Errorf("archive batch of %d: %w", len(docs), err)
	}
	if res.Failed > 0 {
		metrics.BulkItemFailures.Add(float64(res.Failed))
		a.logger.WarnContext(ctx, "bulk items rejected",
			logging.Count(res.Failed),
			logging.Reason(firstError(res.Errors)),
		)
	}
	return nil
}

func firstError(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0]
}
