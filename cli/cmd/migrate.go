package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
	"github.com/telhawk-systems/powerhawk/common/database"

	enrichmigrations "github.com/telhawk-systems/powerhawk/enrich/migrations"
	latestmigrations "github.com/telhawk-systems/powerhawk/latest/migrations"
	writermigrations "github.com/telhawk-systems/powerhawk/writer/migrations"
)

// migrationSets lists every service schema in apply order. The latest-state
// schema only reads the change feed, so it follows the writer.
var migrationSets = []database.Migration{
	enrichmigrations.Set,
	writermigrations.Set,
	latestmigrations.Set,
}

// migrateUp is swapped in tests.
var migrateUp = database.MigrateUp

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database schema commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Example: `  pwctl migrate up
  pwctl migrate up --service writer --database-url postgres://user:pass@db:5432/powerhawk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, _ := cmd.Flags().GetStringSlice("service")
		dbURL, _ := cmd.Flags().GetString("database-url")

		if dbURL == "" {
			p, err := activeProfile()
			if err != nil {
				return err
			}
			dbURL = p.DatabaseURL
		}

		sets, err := selectMigrations(services)
		if err != nil {
			return err
		}

		for _, m := range sets {
			if err := migrateUp(dbURL, m); err != nil {
				return err
			}
			output.Success("%s schema is up to date", m.Name)
		}
		return nil
	},
}

func selectMigrations(services []string) ([]database.Migration, error) {
	if len(services) == 0 {
		return migrationSets, nil
	}

	want := map[string]bool{}
	for _, s := range services {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var out []database.Migration
	for _, m := range migrationSets {
		if want[m.Name] {
			out = append(out, m)
			delete(want, m.Name)
		}
	}
	for unknown := range want {
		return nil, fmt.Errorf("unknown service %q (use enrich, writer or latest)", unknown)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)

	migrateUpCmd.Flags().StringSlice("service", nil, "services to migrate (default: all)")
	migrateUpCmd.Flags().String("database-url", "", "postgres connection URL (default: profile database_url)")
}
