package writer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/messaging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/writer/internal/repository"
)

var fixedNow = time.UnixMilli(1717098290000)

type memoryStore struct {
	rows   map[string]models.TimeSeriesRow
	writes int
	failOn map[string]bool
	reject map[string]bool
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]models.TimeSeriesRow{}, failOn: map[string]bool{}, reject: map[string]bool{}}
}

func (m *memoryStore) Upsert(_ context.Context, row models.TimeSeriesRow) error {
	if m.err != nil || m.failOn[row.MachineID] {
		return errors.New("connection refused")
	}
	if m.reject[row.MachineID] {
		return fmt.Errorf("%w: invalid byte sequence", repository.ErrRejected)
	}
	m.writes++
	m.rows[fmt.Sprintf("%s@%d", row.PlantMachineID, row.Timestamp)] = row
	return nil
}

func newWriter(store *memoryStore, policy models.EnrichmentPolicy, requireKW bool) *Writer {
	w := New(Config{Policy: policy, NumBuckets: 8, Retention: 48 * time.Hour, RequireKW: requireKW}, store, logging.Discard())
	w.now = func() time.Time { return fixedNow }
	return w
}

func TestWriteBatch_PartialBatchIsolation(t *testing.T) {
	store := newMemoryStore()
	w := newWriter(store, models.PolicyDerived, false)

	res, err := w.WriteBatch(context.Background(), [][]byte{
		[]byte(`{"plantId":"p1","machineId":"dev1","receivedAt":1000,"kw":1}`),
		[]byte(`{"plantId":`),
		[]byte(base64.StdEncoding.EncodeToString([]byte(`{"plantId":"p1","machineId":"dev1","receivedAt":3000,"kw":3}`))),
	})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Written: 2, Skipped: 1}, res)
	assert.Len(t, store.rows, 2)
}

func TestWriteBatch_RowShape(t *testing.T) {
	store := newMemoryStore()
	w := newWriter(store, models.PolicyDerived, false)

	_, err := w.WriteBatch(context.Background(), [][]byte{
		[]byte(`{"macId":"m1","plantId":"p1","machineId":"dev1","receivedAt":1000,"kw":50,"kva":100,"kvar":null,"powerFactor":0.5,"utilization":1,"packetId":"42","slaveId":"3","slaveName":"meter"}`),
	})
	require.NoError(t, err)
	require.Len(t, store.rows, 1)

	for _, row := range store.rows {
		assert.Equal(t, "p1#dev1", row.PlantMachineID)
		assert.Equal(t, int64(1000), row.Timestamp)
		assert.Equal(t, "p1#1", row.PlantBucket)
		assert.Equal(t, fixedNow.Add(48*time.Hour).Unix(), row.TTL)
		assert.Equal(t, models.Some(50.0), row.KW)
		assert.Equal(t, models.Some(100.0), row.KVA)
		assert.False(t, row.KVAr.IsPresent())
		assert.Equal(t, models.Some(0.5), row.PowerFactor)
		assert.Equal(t, models.Some(1), row.Utilization)
		assert.Equal(t, models.Some("m1"), row.MacID)
		assert.Equal(t, models.Some("42"), row.PacketID)
	}
}

func TestWriteBatch_Defaults(t *testing.T) {
	store := newMemoryStore()
	w := newWriter(store, models.PolicyPassThrough, true)

	_, err := w.WriteBatch(context.Background(), [][]byte{[]byte(`{"kw":"2.5","powerFactor":0.9}`)})
	require.NoError(t, err)
	require.Len(t, store.rows, 1)

	for _, row := range store.rows {
		assert.Equal(t, "unknown#unknown", row.PlantMachineID)
		assert.Equal(t, fixedNow.UnixMilli(), row.Timestamp)
		assert.Equal(t, "unknown#7", row.PlantBucket)
		assert.Equal(t, models.Some(2.5), row.KW)
		assert.False(t, row.PowerFactor.IsPresent(), "pass-through rows carry no derived metrics")
		assert.False(t, row.Utilization.IsPresent())
	}
}

func TestWriteBatch_KWValidation(t *testing.T) {
	records := [][]byte{
		[]byte(`{"machineId":"a","receivedAt":1,"kw":0}`),
		[]byte(`{"machineId":"b","receivedAt":1}`),
		[]byte(`{"machineId":"c","receivedAt":1,"kw":"Response Timed Out"}`),
	}

	t.Run("require kw", func(t *testing.T) {
		store := newMemoryStore()
		res, err := newWriter(store, models.PolicyPassThrough, true).WriteBatch(context.Background(), records)
		require.NoError(t, err)
		assert.Equal(t, BatchResult{Written: 1, Skipped: 2}, res)
	})

	t.Run("accept all", func(t *testing.T) {
		store := newMemoryStore()
		res, err := newWriter(store, models.PolicyDerived, false).WriteBatch(context.Background(), records)
		require.NoError(t, err)
		assert.Equal(t, BatchResult{Written: 3}, res)
	})
}

func TestWriteBatch_IdempotentReplay(t *testing.T) {
	store := newMemoryStore()
	w := newWriter(store, models.PolicyDerived, false)
	record := []byte(`{"plantId":"p1","machineId":"dev1","receivedAt":1000,"kw":1}`)

	_, err := w.WriteBatch(context.Background(), [][]byte{record})
	require.NoError(t, err)
	snapshot := map[string]models.TimeSeriesRow{}
	for k, v := range store.rows {
		snapshot[k] = v
	}

	_, err = w.WriteBatch(context.Background(), [][]byte{record})
	require.NoError(t, err)
	assert.Equal(t, snapshot, store.rows)
	assert.Equal(t, 2, store.writes)
}

func TestWriteBatch_StoreFailures(t *testing.T) {
	t.Run("every write fails", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("down")
		res, err := newWriter(store, models.PolicyDerived, false).WriteBatch(context.Background(), [][]byte{
			[]byte(`{"kw":1}`), []byte(`{"kw":2}`),
		})
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Equal(t, 2, res.Failed)
	})

	t.Run("partial failure keeps going", func(t *testing.T) {
		store := newMemoryStore()
		store.failOn["bad"] = true
		res, err := newWriter(store, models.PolicyDerived, false).WriteBatch(context.Background(), [][]byte{
			[]byte(`{"machineId":"bad","kw":1}`), []byte(`{"machineId":"good","kw":2}`),
		})
		require.NoError(t, err)
		assert.Equal(t, BatchResult{Written: 1, Failed: 1}, res)
	})

	t.Run("rejected rows are skipped, not retried", func(t *testing.T) {
		store := newMemoryStore()
		store.reject["poison"] = true
		res, err := newWriter(store, models.PolicyDerived, false).WriteBatch(context.Background(), [][]byte{
			[]byte(`{"machineId":"poison","kw":1}`),
		})
		require.NoError(t, err)
		assert.Equal(t, BatchResult{Skipped: 1}, res)
	})

	t.Run("only malformed records", func(t *testing.T) {
		res, err := newWriter(newMemoryStore(), models.PolicyDerived, false).WriteBatch(context.Background(), [][]byte{[]byte(`{{`)})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
	})
}

func TestWriteBatch_TTLFixedPerBatch(t *testing.T) {
	store := newMemoryStore()
	w := newWriter(store, models.PolicyDerived, false)

	calls := 0
	w.now = func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Hour)
	}

	_, err := w.WriteBatch(context.Background(), [][]byte{
		[]byte(`{"machineId":"a","receivedAt":1,"kw":1}`),
		[]byte(`{"machineId":"b","receivedAt":2,"kw":1}`),
	})
	require.NoError(t, err)

	ttls := map[int64]bool{}
	for _, row := range store.rows {
		ttls[row.TTL] = true
	}
	assert.Len(t, ttls, 1)
}

func TestHandleBatch(t *testing.T) {
	store := newMemoryStore()
	w := newWriter(store, models.PolicyDerived, false)

	err := w.HandleBatch(context.Background(), []*messaging.Message{
		{Subject: "telemetry.enriched.1", Data: []byte(`{"kw":1,"receivedAt":5}`)},
	})
	require.NoError(t, err)
	assert.Len(t, store.rows, 1)

	store.err = errors.New("down")
	assert.ErrorIs(t, w.HandleBatch(context.Background(), []*messaging.Message{{Data: []byte(`{"kw":1}`)}}), ErrStoreUnavailable)
}
