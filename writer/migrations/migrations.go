// Package migrations embeds the writer service schema (time-series table and
// its change-feed trigger).
package migrations

import (
	"embed"

	"github.com/telhawk-systems/powerhawk/common/database"
)

//go:embed *.sql
var files embed.FS

// Set is the writer migration set.
var Set = database.Migration{
	Name:  "writer",
	FS:    files,
	Table: "writer_schema_migrations",
}
