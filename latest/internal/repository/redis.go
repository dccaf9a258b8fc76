package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/powerhawk/common/models"
)

const (
	latestKeyPrefix = "powerhawk:latest:"
	plantKeyPrefix  = "powerhawk:latest:plant:"
)

// putIfNewer compares and writes in one server-side step.
// KEYS[1] device hash, KEYS[2] plant index set.
// ARGV[1] lastTimestamp, ARGV[2] row document, ARGV[3] plantMachineId.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'lastTimestamp')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'lastTimestamp', ARGV[1], 'doc', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
return 1
`)

// RedisStore implements LatestStore on Redis hashes with a per-plant index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed latest store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// PutIfNewer implements LatestStore.
func (s *RedisStore) PutIfNewer(ctx context.Context, row models.LatestStateRow) error {
	doc, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode latest state: %w", err)
	}

	applied, err := putIfNewer.Run(ctx, s.client,
		[]string{latestKeyPrefix + row.PlantMachineID, plantKeyPrefix + row.PlantID},
		strconv.FormatInt(row.LastTimestamp, 10), doc, row.PlantMachineID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to put latest state for %s: %w", row.PlantMachineID, err)
	}
	if applied == 0 {
		return ErrConditionFailed
	}
	return nil
}

// Get implements LatestStore.
func (s *RedisStore) Get(ctx context.Context, plantMachineID string) (models.LatestStateRow, error) {
	doc, err := s.client.HGet(ctx, latestKeyPrefix+plantMachineID, "doc").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.LatestStateRow{}, ErrNotFound
		}
		return models.LatestStateRow{}, fmt.Errorf("failed to get latest state: %w", err)
	}
	return decodeLatest(doc)
}

// ListByPlant implements LatestStore.
func (s *RedisStore) ListByPlant(ctx context.Context, plantID string) ([]models.LatestStateRow, error) {
	ids, err := s.client.SMembers(ctx, plantKeyPrefix+plantID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list latest state: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, latestKeyPrefix+id, "doc")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to list latest state: %w", err)
	}

	out := make([]models.LatestStateRow, 0, len(ids))
	for _, cmd := range cmds {
		doc, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read latest state: %w", err)
		}
		row, err := decodeLatest(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	sortByMachine(out)
	return out, nil
}

func decodeLatest(doc []byte) (models.LatestStateRow, error) {
	var row models.LatestStateRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return models.LatestStateRow{}, fmt.Errorf("failed to decode latest state: %w", err)
	}
	return row, nil
}

func sortByMachine(rows []models.LatestStateRow) {
	slices.SortFunc(rows, func(a, b models.LatestStateRow) int {
		return strings.Compare(a.MachineID, b.MachineID)
	})
}
