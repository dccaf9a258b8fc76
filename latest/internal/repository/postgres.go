package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/powerhawk/common/models"
)

const latestColumns = `plant_machine_id, plant_id, machine_id, last_timestamp, mac_id, kw, kvar, kva, power_factor, utilization`

// PostgresStore implements LatestStore on a PostgreSQL table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	return &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// PutIfNewer implements LatestStore with a single conditional upsert.
func (s *PostgresStore) PutIfNewer(ctx context.Context, row models.LatestStateRow) error {
	query := `
		INSERT INTO ` + s.table + ` AS cur (` + latestColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (plant_machine_id) DO UPDATE SET
			plant_id       = EXCLUDED.plant_id,
			machine_id     = EXCLUDED.machine_id,
			last_timestamp = EXCLUDED.last_timestamp,
			mac_id         = EXCLUDED.mac_id,
			kw             = EXCLUDED.kw,
			kvar           = EXCLUDED.kvar,
			kva            = EXCLUDED.kva,
			power_factor   = EXCLUDED.power_factor,
			utilization    = EXCLUDED.utilization,
			updated_at     = now()
		WHERE cur.last_timestamp < EXCLUDED.last_timestamp
	`

	tag, err := s.pool.Exec(ctx, query,
		row.PlantMachineID, row.PlantID, row.MachineID, row.LastTimestamp,
		row.MacID.Ptr(), row.KW.Ptr(), row.KVAr.Ptr(), row.KVA.Ptr(),
		row.PowerFactor.Ptr(), row.Utilization.Ptr(),
	)
	if err != nil {
		return fmt.Errorf("failed to put latest state for %s: %w", row.PlantMachineID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}

// Get implements LatestStore.
func (s *PostgresStore) Get(ctx context.Context, plantMachineID string) (models.LatestStateRow, error) {
	query := `SELECT ` + latestColumns + ` FROM ` + s.table + ` WHERE plant_machine_id = $1`

	row, err := scanLatest(s.pool.QueryRow(ctx, query, plantMachineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LatestStateRow{}, ErrNotFound
		}
		return models.LatestStateRow{}, fmt.Errorf("failed to get latest state: %w", err)
	}
	return row, nil
}

// ListByPlant implements LatestStore.
func (s *PostgresStore) ListByPlant(ctx context.Context, plantID string) ([]models.LatestStateRow, error) {
	query := `SELECT ` + latestColumns + ` FROM ` + s.table + ` WHERE plant_id = $1 ORDER BY machine_id`

	rows, err := s.pool.Query(ctx, query, plantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest state: %w", err)
	}
	defer rows.Close()

	var out []models.LatestStateRow
	for rows.Next() {
		row, err := scanLatest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan latest state: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanLatest(r pgx.Row) (models.LatestStateRow, error) {
	var (
		row                        models.LatestStateRow
		macID                      *string
		kw, kvar, kva, powerFactor *float64
		utilization                *int
	)
	if err := r.Scan(
		&row.PlantMachineID, &row.PlantID, &row.MachineID, &row.LastTimestamp,
		&macID, &kw, &kvar, &kva, &powerFactor, &utilization,
	); err != nil {
		return models.LatestStateRow{}, err
	}
	row.MacID = models.FromPtr(macID)
	row.KW, row.KVAr, row.KVA = models.FromPtr(kw), models.FromPtr(kvar), models.FromPtr(kva)
	row.PowerFactor, row.Utilization = models.FromPtr(powerFactor), models.FromPtr(utilization)
	return row, nil
}
