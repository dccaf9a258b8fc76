package registry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/powerhawk/common/logging"
)

const cacheKeyPrefix = "powerhawk:registry:"

// negativeEntry marks a device known to be absent from the registry.
const negativeEntry = "null"

// CachedStore is a Redis read-through cache in front of another Store.
// Unknown devices are cached too so a flood of unregistered packets does not
// hammer the registry. Redis failures fall through to the backing store.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps next with a Redis cache holding entries for ttl.
func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

// Get implements Store.
func (c *CachedStore) Get(ctx context.Context, macID string) (map[string]any, bool, error) {
	key := cacheKeyPrefix + macID

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if cached == negativeEntry {
			return nil, false, nil
		}
		var attrs map[string]any
		if json.Unmarshal([]byte(cached), &attrs) == nil {
			return attrs, true, nil
		}
	} else if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	attrs, found, err := c.next.Get(ctx, macID)
	if err != nil {
		return nil, false, err
	}

	value := negativeEntry
	if found {
		if raw, mErr := json.Marshal(attrs); mErr == nil {
			value = string(raw)
		}
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "registry cache fill failed", logging.MacID(macID), logging.Error(err))
	}

	return attrs, found, nil
}

// Put writes through to the backing store and drops the cached entry.
func (c *CachedStore) Put(ctx context.Context, macID string, attrs map[string]any) error {
	w, ok := c.next.(Writer)
	if !ok {
		return errors.New("registry store is read-only")
	}
	if err := w.Put(ctx, macID, attrs); err != nil {
		return err
	}
	return c.Invalidate(ctx, macID)
}

// Invalidate drops the cached entry for macID.
func (c *CachedStore) Invalidate(ctx context.Context, macID string) error {
	return c.client.Del(ctx, cacheKeyPrefix+macID).Err()
}
