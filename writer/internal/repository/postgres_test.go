package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/common/database"
	"github.com/telhawk-systems/powerhawk/common/database/dbtest"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/writer/internal/bucket"
	"github.com/telhawk-systems/powerhawk/writer/migrations"
)

func setupRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	connStr := dbtest.Start(t, migrations.Set)

	pool, err := database.NewPool(context.Background(), connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgresRepository(pool, "telemetry_timeseries")
}

func row(plantID, machineID string, ts int64, kw float64, ttl int64) models.TimeSeriesRow {
	return models.TimeSeriesRow{
		PlantMachineID: models.PlantMachineID(plantID, machineID),
		Timestamp:      ts,
		PlantID:        plantID,
		MachineID:      machineID,
		MacID:          models.Some("mac-" + machineID),
		KW:             models.Some(kw),
		Utilization:    models.Some(1),
		PlantBucket:    bucket.PlantBucket(plantID, machineID, 8),
		TTL:            ttl,
	}
}

func TestPostgresRepository_UpsertIsIdempotent(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	r := row("p1", "dev1", 1000, 50, 9999999999)
	require.NoError(t, repo.Upsert(ctx, r))
	require.NoError(t, repo.Upsert(ctx, r))

	rows, err := repo.ListDevice(ctx, SeriesQuery{PlantMachineID: "p1#dev1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r, rows[0])
}

func TestPostgresRepository_UpsertRejectsBadData(t *testing.T) {
	repo := setupRepository(t)

	r := row("p1", "dev1", 1000, 50, 9999999999)
	r.MacID = models.Some("mac\x00")

	err := repo.Upsert(context.Background(), r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected), err.Error())
}

func TestPostgresRepository_UpsertStoresOversizeText(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	long := strings.Repeat("s", 9000)

	r := row("p1", "dev1", 1000, 50, 9999999999)
	r.SlaveName = models.Some(long)
	require.NoError(t, repo.Upsert(ctx, r))
	require.NoError(t, repo.Upsert(ctx, r), "replay")

	// mac_id is part of the change notification, which then exceeds the
	// notify limit; the row must still commit.
	r2 := row("p1", "dev2", 1000, 50, 9999999999)
	r2.MacID = models.Some(long)
	require.NoError(t, repo.Upsert(ctx, r2))

	rows, err := repo.ListPlant(ctx, "p1", 8, SeriesQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, got := range rows {
		switch got.MachineID {
		case "dev1":
			assert.Equal(t, models.Some(long), got.SlaveName)
		case "dev2":
			assert.Equal(t, models.Some(long), got.MacID)
		}
	}
}

func TestPostgresRepository_UpsertOverwrites(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, row("p1", "dev1", 1000, 50, 9999999999)))
	require.NoError(t, repo.Upsert(ctx, row("p1", "dev1", 1000, 75, 9999999999)))

	rows, err := repo.ListDevice(ctx, SeriesQuery{PlantMachineID: "p1#dev1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.Some(75.0), rows[0].KW)
	assert.False(t, rows[0].KVA.IsPresent())
}

func TestPostgresRepository_ListPlantAcrossBuckets(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for i, machine := range []string{"dev1", "machine-123", "unknown"} {
		require.NoError(t, repo.Upsert(ctx, row("p1", machine, int64(1000+i), 1, 9999999999)))
	}
	require.NoError(t, repo.Upsert(ctx, row("p2", "dev1", 1000, 1, 9999999999)))

	rows, err := repo.ListPlant(ctx, "p1", 8, SeriesQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1002), rows[0].Timestamp, "newest first")

	rows, err = repo.ListPlant(ctx, "p1", 8, SeriesQuery{From: 1001, To: 1001})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "machine-123", rows[0].MachineID)
}

func TestPostgresRepository_ReapExpired(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, repo.Upsert(ctx, row("p1", "dev1", int64(i), 1, 100)))
	}
	require.NoError(t, repo.Upsert(ctx, row("p1", "dev1", 99, 1, 500)))

	n, err := repo.ReapExpired(ctx, 200, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.ReapExpired(ctx, 200, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := repo.ListDevice(ctx, SeriesQuery{PlantMachineID: "p1#dev1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(99), rows[0].Timestamp)
}

func TestSeriesQuery_Normalize(t *testing.T) {
	q, err := SeriesQuery{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, q.Limit)

	_, err = SeriesQuery{From: 10, To: 5}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = SeriesQuery{From: -1}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
