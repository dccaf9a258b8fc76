package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/common/models"
)

type fakeStore struct {
	entries map[string]map[string]any
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeStore) Get(ctx context.Context, macID string) (map[string]any, bool, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, false, f.err
	}
	attrs, ok := f.entries[macID]
	return attrs, ok, nil
}

func (f *fakeStore) Put(_ context.Context, macID string, attrs map[string]any) error {
	if f.entries == nil {
		f.entries = map[string]map[string]any{}
	}
	f.entries[macID] = attrs
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolver_Resolve(t *testing.T) {
	store := &fakeStore{entries: map[string]map[string]any{
		"m1":  {"plantId": "p1", "machineId": "dev1", "utilThresholdKw": 0.5},
		"bad": {"plantId": true},
	}}
	r := NewResolver(store, time.Second, quietLogger())

	entry := r.Resolve(context.Background(), models.Some("m1"))
	assert.Equal(t, models.Some("p1"), entry.PlantID)
	assert.Equal(t, models.Some("dev1"), entry.MachineID)
	assert.Equal(t, models.Some(0.5), entry.UtilThresholdKW)

	assert.Equal(t, Entry{}, r.Resolve(context.Background(), models.Some("missing")))
	assert.Equal(t, Entry{}, r.Resolve(context.Background(), models.Some("bad")))
}

func TestResolver_AbsentMacSkipsLookup(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, time.Second, quietLogger())

	assert.Equal(t, Entry{}, r.Resolve(context.Background(), models.None[string]()))
	assert.Equal(t, 0, store.calls)
}

func TestResolver_FailuresResolveEmpty(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		r := NewResolver(&fakeStore{err: errors.New("connection refused")}, time.Second, quietLogger())
		assert.Equal(t, Entry{}, r.Resolve(context.Background(), models.Some("m1")))
	})

	t.Run("timeout", func(t *testing.T) {
		store := &fakeStore{delay: time.Second, entries: map[string]map[string]any{"m1": {"plantId": "p1"}}}
		r := NewResolver(store, 10*time.Millisecond, quietLogger())

		start := time.Now()
		assert.Equal(t, Entry{}, r.Resolve(context.Background(), models.Some("m1")))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("nil store", func(t *testing.T) {
		r := NewResolver(nil, time.Second, quietLogger())
		assert.Equal(t, Entry{}, r.Resolve(context.Background(), models.Some("m1")))
	})
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		attrs   map[string]any
		want    Entry
		wantErr bool
	}{
		{
			name:  "empty",
			attrs: map[string]any{},
		},
		{
			name:  "numeric identifiers become strings",
			attrs: map[string]any{"plantId": float64(7), "machineId": json.Number("0")},
			want:  Entry{PlantID: models.Some("7"), MachineID: models.Some("0")},
		},
		{
			name:  "empty strings are absent",
			attrs: map[string]any{"plantId": "", "machineId": nil},
		},
		{
			name:  "threshold from numeric string",
			attrs: map[string]any{"utilThresholdKw": "1.5"},
			want:  Entry{UtilThresholdKW: models.Some(1.5)},
		},
		{
			name:    "threshold not numeric",
			attrs:   map[string]any{"plantId": "p1", "utilThresholdKw": "high"},
			wantErr: true,
		},
		{
			name:    "threshold bool",
			attrs:   map[string]any{"utilThresholdKw": true},
			wantErr: true,
		},
		{
			name:    "machine id object",
			attrs:   map[string]any{"machineId": map[string]any{"x": 1}},
			wantErr: true,
		},
		{
			name:  "unknown attributes ignored",
			attrs: map[string]any{"plantId": "p1", "note": []any{1, 2}},
			want:  Entry{PlantID: models.Some("p1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.attrs)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, Entry{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntry_Attributes(t *testing.T) {
	e := Entry{PlantID: models.Some("p1"), UtilThresholdKW: models.Some(0.8)}
	attrs := e.Attributes()
	assert.Equal(t, map[string]any{"plantId": "p1", "utilThresholdKw": 0.8}, attrs)

	back, err := ParseEntry(attrs)
	require.NoError(t, err)
	assert.Equal(t, e, back)
}
