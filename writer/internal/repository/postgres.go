package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/writer/internal/bucket"
)

const columns = `plant_machine_id, ts, plant_id, machine_id, mac_id, packet_id, slave_id, slave_name,
	kw, kvar, kva, power_factor, utilization, plant_bucket, ttl`

// PostgresRepository implements TimeSeriesStore, Reaper and SeriesReader.
type PostgresRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresRepository creates a repository over an existing pool.
func NewPostgresRepository(pool *pgxpool.Pool, table string) *PostgresRepository {
	return &PostgresRepository{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// Upsert implements TimeSeriesStore. Each call is one atomic statement.
func (r *PostgresRepository) Upsert(ctx context.Context, row models.TimeSeriesRow) error {
	query := `
		INSERT INTO ` + r.table + ` (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (plant_machine_id, ts) DO UPDATE SET
			plant_id     = EXCLUDED.plant_id,
			machine_id   = EXCLUDED.machine_id,
			mac_id       = EXCLUDED.mac_id,
			packet_id    = EXCLUDED.packet_id,
			slave_id     = EXCLUDED.slave_id,
			slave_name   = EXCLUDED.slave_name,
			kw           = EXCLUDED.kw,
			kvar         = EXCLUDED.kvar,
			kva          = EXCLUDED.kva,
			power_factor = EXCLUDED.power_factor,
			utilization  = EXCLUDED.utilization,
			plant_bucket = EXCLUDED.plant_bucket,
			ttl          = EXCLUDED.ttl
	`

	_, err := r.pool.Exec(ctx, query,
		row.PlantMachineID, row.Timestamp, row.PlantID, row.MachineID,
		row.MacID.Ptr(), row.PacketID.Ptr(), row.SlaveID.Ptr(), row.SlaveName.Ptr(),
		row.KW.Ptr(), row.KVAr.Ptr(), row.KVA.Ptr(), row.PowerFactor.Ptr(), row.Utilization.Ptr(),
		row.PlantBucket, row.TTL,
	)
	if err != nil {
		if rejected(err) {
			return fmt.Errorf("%w: %s@%d: %v", ErrRejected, row.PlantMachineID, row.Timestamp, err)
		}
		return fmt.Errorf("failed to upsert %s@%d: %w", row.PlantMachineID, row.Timestamp, err)
	}
	return nil
}

// rejected reports data exceptions (class 22) and integrity violations
// (class 23).
func rejected(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

// ReapExpired implements Reaper, deleting at most limit rows with ttl < now.
func (r *PostgresRepository) ReapExpired(ctx context.Context, nowEpochSeconds int64, limit int) (int64, error) {
	query := `
		DELETE FROM ` + r.table + `
		WHERE ctid IN (
			SELECT ctid FROM ` + r.table + `
			WHERE ttl < $1
			LIMIT $2
		)
	`

	tag, err := r.pool.Exec(ctx, query, nowEpochSeconds, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListDevice returns one device's rows, newest first.
func (r *PostgresRepository) ListDevice(ctx context.Context, q SeriesQuery) ([]models.TimeSeriesRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + columns + `
		FROM ` + r.table + `
		WHERE plant_machine_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT $4
	`
	return r.list(ctx, query, q.PlantMachineID, q.From, upper(q.To), q.Limit)
}

// ListPlant returns rows of every device of plantID, newest first, reading
// all plant buckets.
func (r *PostgresRepository) ListPlant(ctx context.Context, plantID string, numBuckets int, q SeriesQuery) ([]models.TimeSeriesRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + columns + `
		FROM ` + r.table + `
		WHERE plant_bucket = ANY($1) AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT $4
	`
	return r.list(ctx, query, bucket.All(plantID, numBuckets), q.From, upper(q.To), q.Limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.TimeSeriesRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []models.TimeSeriesRow
	for rows.Next() {
		var (
			row                                 models.TimeSeriesRow
			macID, packetID, slaveID, slaveName *string
			kw, kvar, kva, powerFactor          *float64
			utilization                         *int
		)
		if err := rows.Scan(
			&row.PlantMachineID, &row.Timestamp, &row.PlantID, &row.MachineID,
			&macID, &packetID, &slaveID, &slaveName,
			&kw, &kvar, &kva, &powerFactor, &utilization,
			&row.PlantBucket, &row.TTL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		row.MacID, row.PacketID = models.FromPtr(macID), models.FromPtr(packetID)
		row.SlaveID, row.SlaveName = models.FromPtr(slaveID), models.FromPtr(slaveName)
		row.KW, row.KVAr, row.KVA = models.FromPtr(kw), models.FromPtr(kvar), models.FromPtr(kva)
		row.PowerFactor, row.Utilization = models.FromPtr(powerFactor), models.FromPtr(utilization)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read series rows: %w", err)
	}
	return out, nil
}

func upper(to int64) int64 {
	if to == 0 {
		return math.MaxInt64
	}
	return to
}
