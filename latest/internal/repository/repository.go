package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/powerhawk/common/models"
)

var (
	// ErrConditionFailed means a row with an equal or newer LastTimestamp exists.
	ErrConditionFailed = errors.New("latest state is newer or equal")
	ErrNotFound        = errors.New("latest state not found")
)

// LatestStore holds one row per device.
type LatestStore interface {
	// PutIfNewer writes row only if no row exists for its key or the stored
	// LastTimestamp is strictly older. The check and write are one atomic
	// operation. A rejected write returns ErrConditionFailed.
	PutIfNewer(ctx context.Context, row models.LatestStateRow) error

	Get(ctx context.Context, plantMachineID string) (models.LatestStateRow, error)
	ListByPlant(ctx context.Context, plantID string) ([]models.LatestStateRow, error)
}
