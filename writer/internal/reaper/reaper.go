// Package reaper deletes time-series rows whose ttl has passed.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/writer/internal/metrics"
	"github.com/telhawk-systems/powerhawk/writer/internal/repository"
)

// maxPassesPerRun bounds one sweep so a large backlog cannot pin the loop.
const maxPassesPerRun = 100

// Reaper periodically removes expired rows in bounded batches.
type Reaper struct {
	repo     repository.Reaper
	interval time.Duration
	limit    int
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Reaper. Call Start to run it in the background.
func New(repo repository.Reaper, interval time.Duration, limit int, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reaper{
		repo:     repo,
		interval: interval,
		limit:    limit,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background sweep loop.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.loop()
}

func (r *Reaper) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(r.ctx); err != nil && r.ctx.Err() == nil {
				r.logger.Warn("ttl sweep failed", logging.Error(err))
			}
		}
	}
}

// RunOnce deletes expired rows until a pass removes fewer than limit rows.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Unix()

	var total int64
	for range maxPassesPerRun {
		n, err := r.repo.ReapExpired(ctx, cutoff, r.limit)
		total += n
		metrics.ReapedRows.Add(float64(n))
		if err != nil {
			return total, err
		}
		if n < int64(r.limit) {
			break
		}
	}

	if total > 0 {
		r.logger.Debug("reaped expired rows", logging.Count(int(total)))
	}
	return total, nil
}

// Stop stops the loop and waits for an in-flight sweep.
func (r *Reaper) Stop() {
	r.cancel()
	r.wg.Wait()
}
