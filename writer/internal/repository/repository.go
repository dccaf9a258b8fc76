package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/powerhawk/common/models"
)

var ErrInvalidQuery = errors.New("invalid series query")

// ErrRejected marks a row the store refused for its content (out-of-range
// value, constraint violation). Retrying the same row cannot succeed.
var ErrRejected = errors.New("row rejected by store")

// TimeSeriesStore persists time-series rows.
type TimeSeriesStore interface {
	// Upsert writes row, overwriting any existing row with the same
	// (PlantMachineID, Timestamp).
	Upsert(ctx context.Context, row models.TimeSeriesRow) error
}

// Reaper deletes rows past their TTL.
type Reaper interface {
	ReapExpired(ctx context.Context, nowEpochSeconds int64, limit int) (int64, error)
}

// SeriesReader serves time-series reads.
type SeriesReader interface {
	ListDevice(ctx context.Context, q SeriesQuery) ([]models.TimeSeriesRow, error)
	ListPlant(ctx context.Context, plantID string, numBuckets int, q SeriesQuery) ([]models.TimeSeriesRow, error)
}

// SeriesQuery bounds a time-series read. From and To are inclusive epoch
// milliseconds; zero To means unbounded.
type SeriesQuery struct {
	PlantMachineID string
	From           int64
	To             int64
	Limit          int
}

// DefaultLimit caps reads without an explicit limit.
const DefaultLimit = 500

// Normalize validates q and applies the default limit.
func (q SeriesQuery) Normalize() (SeriesQuery, error) {
	if q.From < 0 || (q.To != 0 && q.To < q.From) {
		return q, ErrInvalidQuery
	}
	if q.Limit <= 0 || q.Limit > 10*DefaultLimit {
		q.Limit = DefaultLimit
	}
	return q, nil
}
