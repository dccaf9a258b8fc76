// Package migrations embeds the latest service schema.
package migrations

import (
	"embed"

	"github.com/telhawk-systems/powerhawk/common/database"
)

//go:embed *.sql
var files embed.FS

// Set is the latest migration set.
var Set = database.Migration{
	Name:  "latest",
	FS:    files,
	Table: "latest_schema_migrations",
}
