package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads the device registry table (mac_id, attributes jsonb).
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a registry store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	return &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, macID string) (map[string]any, bool, error) {
	var attrs map[string]any
	err := s.pool.QueryRow(ctx,
		`SELECT attributes FROM `+s.table+` WHERE mac_id = $1`, macID,
	).Scan(&attrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query device registry: %w", err)
	}
	return attrs, true, nil
}

// Put creates or replaces a device entry.
func (s *PostgresStore) Put(ctx context.Context, macID string, attrs map[string]any) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (mac_id, attributes, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (mac_id) DO UPDATE
		SET attributes = EXCLUDED.attributes, updated_at = EXCLUDED.updated_at`,
		macID, attrs,
	)
	if err != nil {
		return fmt.Errorf("upsert device registry: %w", err)
	}
	return nil
}
