// Package migrations embeds the enrich service schema (device registry).
package migrations

import (
	"embed"

	"github.com/telhawk-systems/powerhawk/common/database"
)

//go:embed *.sql
var files embed.FS

// Set is the enrich migration set.
var Set = database.Migration{
	Name:  "enrich",
	FS:    files,
	Table: "enrich_schema_migrations",
}
