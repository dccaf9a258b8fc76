package database

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithMigrationsTable(t *testing.T) {
	got, err := withMigrationsTable("postgres://u:p@localhost:5432/powerhawk?sslmode=disable", "writer_schema_migrations")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "writer_schema_migrations", u.Query().Get("x-migrations-table"))
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestWithMigrationsTable_Empty(t *testing.T) {
	in := "postgres://u:p@localhost:5432/powerhawk"
	got, err := withMigrationsTable(in, "")
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestTimeoutContexts(t *testing.T) {
	for name, fn := range map[string]func(context.Context) (context.Context, context.CancelFunc){
		"query": QueryContext,
		"write": WriteContext,
		"bulk":  BulkContext,
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := fn(context.Background())
			defer cancel()
			_, ok := ctx.Deadline()
			assert.True(t, ok)
		})
	}
}
