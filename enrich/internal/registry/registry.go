// Package registry resolves device MAC identifiers to plant/machine identity
// and per-device utilization thresholds.
//
// Lookups are best effort. Not-found, timeouts, transport failures and
// malformed entries all resolve to an empty Entry so enrichment stays live
// when the registry is down.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/enrich/internal/metrics"
)

// Attribute names stored for a device.
const (
	AttrPlantID         = "plantId"
	AttrMachineID       = "machineId"
	AttrUtilThresholdKW = "utilThresholdKw"
)

// Entry is a resolved registry record. Every field may be absent.
type Entry struct {
	PlantID         models.Optional[string]
	MachineID       models.Optional[string]
	UtilThresholdKW models.Optional[float64]
}

// Store reads raw registry attributes. found is false for unknown devices;
// err is reserved for genuine transport failures.
type Store interface {
	Get(ctx context.Context, macID string) (attrs map[string]any, found bool, err error)
}

// Writer creates or replaces device entries.
type Writer interface {
	Put(ctx context.Context, macID string, attrs map[string]any) error
}

// Resolver wraps a Store with a timeout and the empty-result fallback.
type Resolver struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver creates a Resolver. A nil store disables lookups.
func NewResolver(store Store, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, timeout: timeout, logger: logger}
}

// Resolve looks up macID. It never fails.
func (r *Resolver) Resolve(ctx context.Context, macID models.Optional[string]) Entry {
	mac, ok := macID.Get()
	if !ok || r == nil || r.store == nil {
		return Entry{}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	attrs, found, err := r.store.Get(ctx, mac)
	switch {
	case err != nil:
		metrics.RegistryFallbacks.WithLabelValues("error").Inc()
		r.logger.Warn("registry lookup failed, using defaults", logging.MacID(mac), logging.Error(err))
		return Entry{}
	case !found:
		metrics.RegistryFallbacks.WithLabelValues("not_found").Inc()
		return Entry{}
	}

	entry, err := ParseEntry(attrs)
	if err != nil {
		metrics.RegistryFallbacks.WithLabelValues("malformed").Inc()
		r.logger.Warn("malformed registry entry, using defaults", logging.MacID(mac), logging.Error(err))
		return Entry{}
	}
	return entry
}

// ParseEntry validates raw attributes. A present attribute of the wrong type
// makes the whole entry malformed. Empty strings count as absent.
func ParseEntry(attrs map[string]any) (Entry, error) {
	var e Entry
	var err error

	if e.PlantID, err = identifier(attrs, AttrPlantID); err != nil {
		return Entry{}, err
	}
	if e.MachineID, err = identifier(attrs, AttrMachineID); err != nil {
		return Entry{}, err
	}
	if v, present := attrs[AttrUtilThresholdKW]; present && v != nil {
		if _, isBool := v.(bool); isBool {
			return Entry{}, fmt.Errorf("%s: unexpected type %T", AttrUtilThresholdKW, v)
		}
		threshold := models.Float(v)
		if !threshold.IsPresent() {
			return Entry{}, fmt.Errorf("%s: %v is not numeric", AttrUtilThresholdKW, v)
		}
		e.UtilThresholdKW = threshold
	}
	return e, nil
}

// Attributes converts an Entry back into storable attributes.
func (e Entry) Attributes() map[string]any {
	attrs := make(map[string]any, 3)
	if v, ok := e.PlantID.Get(); ok {
		attrs[AttrPlantID] = v
	}
	if v, ok := e.MachineID.Get(); ok {
		attrs[AttrMachineID] = v
	}
	if v, ok := e.UtilThresholdKW.Get(); ok {
		attrs[AttrUtilThresholdKW] = v
	}
	return attrs
}

func identifier(attrs map[string]any, key string) (models.Optional[string], error) {
	v, present := attrs[key]
	if !present || v == nil || v == "" {
		return models.None[string](), nil
	}
	s := models.String(v)
	if !s.IsPresent() {
		return models.None[string](), fmt.Errorf("%s: unexpected type %T", key, v)
	}
	return s, nil
}
