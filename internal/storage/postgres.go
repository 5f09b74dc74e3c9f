package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for sensor state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Per-sensor state, keyed by the data source identifier from item 010.
	CREATE TABLE IF NOT EXISTS sensors (
		sac             INTEGER NOT NULL,
		sic             INTEGER NOT NULL,
		last_cat        INTEGER NOT NULL,
		last_variation  TEXT,
		record_count    BIGINT NOT NULL DEFAULT 1,
		invalid_count   BIGINT NOT NULL DEFAULT 0,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (sac, sic)
	);

	CREATE INDEX IF NOT EXISTS idx_sensors_last_seen ON sensors(last_seen);

	-- Ingest batch bookkeeping.
	CREATE TABLE IF NOT EXISTS batches (
		batch_id        TEXT PRIMARY KEY,
		started_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		record_count    BIGINT NOT NULL DEFAULT 0
	);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertSensor records one decoded record against its sensor.
func (d *PostgresDB) UpsertSensor(ctx context.Context, r Record) error {
	invalid := 0
	if !r.Valid {
		invalid = 1
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO sensors (sac, sic, last_cat, last_variation, record_count, invalid_count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
		ON CONFLICT (sac, sic) DO UPDATE SET
			last_cat = EXCLUDED.last_cat,
			last_variation = EXCLUDED.last_variation,
			record_count = sensors.record_count + 1,
			invalid_count = sensors.invalid_count + EXCLUDED.invalid_count,
			last_seen = EXCLUDED.last_seen
	`, int(r.SAC), int(r.SIC), int(r.Cat), r.Variation, invalid, r.ReceivedAt)
	if err != nil {
		return fmt.Errorf("upsert sensor: %w", err)
	}
	return nil
}

// RecordBatch inserts the batch row, or adds count to the record count of
// an existing row with the same batch id.
func (d *PostgresDB) RecordBatch(ctx context.Context, batchID string, startedAt time.Time, count int) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO batches (batch_id, started_at, record_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_id) DO UPDATE SET record_count = batches.record_count + EXCLUDED.record_count
	`, batchID, startedAt, count)
	if err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

// Sensor is one row of per-sensor state.
type Sensor struct {
	SAC           uint16
	SIC           uint16
	LastCat       uint8
	LastVariation string
	RecordCount   int64
	InvalidCount  int64
	FirstSeen     time.Time
	LastSeen      time.Time
}

// ListSensors returns all known sensors ordered by last activity.
func (d *PostgresDB) ListSensors(ctx context.Context) ([]Sensor, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT sac, sic, last_cat, last_variation, record_count, invalid_count, first_seen, last_seen
		FROM sensors ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()

	var out []Sensor
	for rows.Next() {
		var s Sensor
		var sac, sic, cat int
		if err := rows.Scan(&sac, &sic, &cat, &s.LastVariation, &s.RecordCount,
			&s.InvalidCount, &s.FirstSeen, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		s.SAC = uint16(sac)
		s.SIC = uint16(sic)
		s.LastCat = uint8(cat)
		out = append(out, s)
	}
	return out, rows.Err()
}
