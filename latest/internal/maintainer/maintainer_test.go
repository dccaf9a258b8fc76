package maintainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/latest/internal/changefeed"
	"github.com/telhawk-systems/powerhawk/latest/internal/repository"
)

// memoryStore emulates the conditional write of the real stores.
type memoryStore struct {
	rows map[string]models.LatestStateRow
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]models.LatestStateRow{}}
}

func (m *memoryStore) PutIfNewer(_ context.Context, row models.LatestStateRow) error {
	if m.err != nil {
		return m.err
	}
	if cur, ok := m.rows[row.PlantMachineID]; ok && cur.LastTimestamp >= row.LastTimestamp {
		return repository.ErrConditionFailed
	}
	m.rows[row.PlantMachineID] = row
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (models.LatestStateRow, error) {
	row, ok := m.rows[id]
	if !ok {
		return models.LatestStateRow{}, repository.ErrNotFound
	}
	return row, nil
}

func (m *memoryStore) ListByPlant(context.Context, string) ([]models.LatestStateRow, error) {
	return nil, nil
}

func notification(t *testing.T, op, image string) changefeed.Notification {
	t.Helper()
	n, err := changefeed.Decode([]byte(fmt.Sprintf(`{"op":%q,"new_image":%s}`, op, image)))
	require.NoError(t, err)
	return n
}

func image(machine string, ts int64, kw float64) string {
	return fmt.Sprintf(`{"plant_machine_id":"p1#%[1]s","plant_id":"p1","machine_id":%[1]q,"ts":%[2]d,"mac_id":"m1","kw":%[3]v,"kva":100,"kvar":null,"power_factor":0.5,"utilization":1,"plant_bucket":"p1#1","ttl":99}`, machine, ts, kw)
}

func TestHandleBatch_ReversedOrderKeepsNewest(t *testing.T) {
	store := newMemoryStore()
	m := New(store, models.PolicyPassThrough, logging.Discard())

	res := m.HandleBatch(context.Background(), []changefeed.Notification{
		notification(t, changefeed.OpInsert, image("dev1", 2000, 20)),
		notification(t, changefeed.OpInsert, image("dev1", 1000, 10)),
	})
	assert.Equal(t, Result{Applied: 1, Conflicts: 1}, res)

	row := store.rows["p1#dev1"]
	assert.Equal(t, int64(2000), row.LastTimestamp)
	assert.Equal(t, models.Some(20.0), row.KW)
}

func TestHandleBatch_IgnoresRemovals(t *testing.T) {
	store := newMemoryStore()
	m := New(store, models.PolicyDerived, logging.Discard())

	res := m.HandleBatch(context.Background(), []changefeed.Notification{
		notification(t, changefeed.OpRemove, "null"),
		{Op: "TRUNCATE"},
	})
	assert.Equal(t, Result{Ignored: 2}, res)
	assert.Empty(t, store.rows)
}

func TestHandleBatch_SkipsIncompleteImages(t *testing.T) {
	store := newMemoryStore()
	m := New(store, models.PolicyDerived, logging.Discard())

	res := m.HandleBatch(context.Background(), []changefeed.Notification{
		notification(t, changefeed.OpInsert, `{"plant_id":"p1","ts":1}`),
		notification(t, changefeed.OpInsert, `{"machine_id":"dev1","ts":1}`),
		notification(t, changefeed.OpInsert, `{"plant_id":"p1","machine_id":"dev1"}`),
		notification(t, changefeed.OpModify, `{"plant_id":"","machine_id":"dev1","ts":1}`),
		notification(t, changefeed.OpModify, image("dev1", 5, 1)),
	})
	assert.Equal(t, Result{Skipped: 4, Applied: 1}, res)
}

func TestHandleBatch_StoreFailureContinues(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("throttled")
	m := New(store, models.PolicyDerived, logging.Discard())

	res := m.HandleBatch(context.Background(), []changefeed.Notification{
		notification(t, changefeed.OpInsert, image("dev1", 1, 1)),
		notification(t, changefeed.OpInsert, image("dev2", 1, 1)),
	})
	assert.Equal(t, Result{Failed: 2}, res)
}

func TestBuildRow_PolicyFieldSet(t *testing.T) {
	var img models.RawPacket
	n := notification(t, changefeed.OpInsert, image("dev1", 1000, 50))
	img = n.NewImage

	passThrough, ok := New(nil, models.PolicyPassThrough, nil).BuildRow(img)
	require.True(t, ok)
	assert.Equal(t, models.LatestStateRow{
		PlantMachineID: "p1#dev1",
		PlantID:        "p1",
		MachineID:      "dev1",
		LastTimestamp:  1000,
		MacID:          models.Some("m1"),
		KW:             models.Some(50.0),
		KVA:            models.Some(100.0),
	}, passThrough)

	derived, ok := New(nil, models.PolicyDerived, nil).BuildRow(img)
	require.True(t, ok)
	assert.Equal(t, models.Some(0.5), derived.PowerFactor)
	assert.Equal(t, models.Some(1), derived.Utilization)

	raw, err := json.Marshal(derived)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plantBucket")
	assert.NotContains(t, string(raw), "ttl")
}

func TestHandleBatch_Commutative(t *testing.T) {
	orders := [][]int64{
		{1, 2, 3, 4},
		{4, 3, 2, 1},
		{2, 4, 1, 3},
	}
	for _, order := range orders {
		store := newMemoryStore()
		m := New(store, models.PolicyDerived, logging.Discard())

		var batch []changefeed.Notification
		for _, ts := range order {
			batch = append(batch, notification(t, changefeed.OpInsert, image("dev1", ts, float64(ts*10))))
		}
		m.HandleBatch(context.Background(), batch)

		assert.Equal(t, int64(4), store.rows["p1#dev1"].LastTimestamp)
		assert.Equal(t, models.Some(40.0), store.rows["p1#dev1"].KW)
	}
}
