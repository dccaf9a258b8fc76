package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/common/database"
	"github.com/telhawk-systems/powerhawk/common/database/dbtest"
	"github.com/telhawk-systems/powerhawk/enrich/migrations"
)

func TestPostgresStore(t *testing.T) {
	connStr := dbtest.Start(t, migrations.Set)
	ctx := context.Background()

	pool, err := database.NewPool(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	store := NewPostgresStore(pool, "device_registry")

	_, found, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "m1", map[string]any{"plantId": "p1", "utilThresholdKw": 0.5}))
	attrs, found, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	require.True(t, found)

	entry, err := ParseEntry(attrs)
	require.NoError(t, err)
	assert.Equal(t, "p1", entry.PlantID.OrElse(""))
	assert.Equal(t, 0.5, entry.UtilThresholdKW.OrElse(0))

	require.NoError(t, store.Put(ctx, "m1", map[string]any{"machineId": "dev9"}))
	attrs, _, err = store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"machineId": "dev9"}, attrs)
}
