package database

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration is one service's embedded migration set. Services share a
// database, so each set tracks its version in its own table.
type Migration struct {
	Name  string
	FS    fs.FS
	Table string
}

// MigrateUp applies every pending migration in m. No change is not an error.
func MigrateUp(connString string, m Migration) error {
	src, err := iofs.New(m.FS, ".")
	if err != nil {
		return fmt.Errorf("%s migrations: open source: %w", m.Name, err)
	}

	dbURL, err := withMigrationsTable(connString, m.Table)
	if err != nil {
		return fmt.Errorf("%s migrations: %w", m.Name, err)
	}

	mg, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("%s migrations: initialize: %w", m.Name, err)
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s migrations: up: %w", m.Name, err)
	}
	return nil
}

func withMigrationsTable(connString, table string) (string, error) {
	if table == "" {
		return connString, nil
	}
	u, err := url.Parse(connString)
	if err != nil {
		return "", fmt.Errorf("parse connection string: %w", err)
	}
	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
