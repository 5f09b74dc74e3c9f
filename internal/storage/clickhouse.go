package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for the record analytics sink.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS records (
		batch_id       String,
		received_at    DateTime64(3),
		cat            UInt8,
		sac            UInt16,
		sic            UInt16,
		uap_variation  LowCardinality(String),
		valid          UInt8,
		error          String,
		raw_hex        String,
		decoded_json   String,
		created_at     DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(received_at)
	ORDER BY (cat, sac, sic, received_at)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertBatch stores decoded records in ClickHouse efficiently.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO records (batch_id, received_at, cat, sac, sic, uap_variation, valid, error, raw_hex, decoded_json)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		valid := uint8(0)
		if r.Valid {
			valid = 1
		}
		if err := batch.Append(r.BatchID, r.ReceivedAt, r.Cat, r.SAC, r.SIC,
			r.Variation, valid, r.Error, r.RawHex, r.DecodedJSON); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Count returns the total number of records, optionally filtered by category.
func (d *ClickHouseDB) Count(ctx context.Context, cat int) (uint64, error) {
	var count uint64
	var err error
	if cat >= 0 {
		row := d.conn.QueryRow(ctx, "SELECT count() FROM records WHERE cat = ?", uint8(cat))
		err = row.Scan(&count)
	} else {
		row := d.conn.QueryRow(ctx, "SELECT count() FROM records")
		err = row.Scan(&count)
	}
	return count, err
}

// CountBySensor returns record counts grouped by (sac, sic).
func (d *ClickHouseDB) CountBySensor(ctx context.Context) (map[[2]uint16]uint64, error) {
	counts := make(map[[2]uint16]uint64)
	rows, err := d.conn.Query(ctx, "SELECT sac, sic, count() FROM records GROUP BY sac, sic")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sac, sic uint16
		var count uint64
		if err := rows.Scan(&sac, &sic, &count); err != nil {
			return nil, fmt.Errorf("scan sensor count: %w", err)
		}
		counts[[2]uint16{sac, sic}] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor counts: %w", err)
	}
	return counts, nil
}
