package storage

import (
	"context"
	"errors"
	"fmt"
)

// Config selects and configures the server-backed record stores. A backend
// is opened only when its Use flag is set; SQLite is file-local and opened
// separately via OpenSQLite.
type Config struct {
	UseClickHouse bool
	UsePostgres   bool

	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns local development settings with no backend enabled.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "asterix",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "asterix_state",
			User:     "asterix",
			Password: "asterix",
		},
	}
}

// ErrNoBackend is returned by Open when the config enables nothing.
var ErrNoBackend = errors.New("no storage backend enabled")

// Store fans decoded records out to the enabled backends: ClickHouse keeps
// the full record stream for analytics, PostgreSQL keeps per-sensor state
// and ingest batch bookkeeping. Either side may be absent.
type Store struct {
	ch *ClickHouseDB
	pg *PostgresDB
}

// Open connects the backends enabled in cfg and bootstraps their schemas.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if !cfg.UseClickHouse && !cfg.UsePostgres {
		return nil, ErrNoBackend
	}

	s := &Store{}
	if cfg.UseClickHouse {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.ch = ch
	}
	if cfg.UsePostgres {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.pg = pg
	}

	if err := s.createSchemas(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// ClickHouse returns the analytics backend, or nil when disabled.
func (s *Store) ClickHouse() *ClickHouseDB { return s.ch }

// Postgres returns the state backend, or nil when disabled.
func (s *Store) Postgres() *PostgresDB { return s.pg }

func (s *Store) createSchemas(ctx context.Context) error {
	if s.ch != nil {
		if err := s.ch.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if s.pg != nil {
		if err := s.pg.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// StoreRecords writes one decoded block's records to every open backend:
// a batch insert into ClickHouse, then a sensor-state upsert per record and
// the batch row in PostgreSQL. Rows from one block share a batch id and
// receive time, so the batch bookkeeping uses the first row's.
func (s *Store) StoreRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	if s.ch != nil {
		if err := s.ch.InsertBatch(ctx, records); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
	}

	if s.pg != nil {
		for _, r := range records {
			if err := s.pg.UpsertSensor(ctx, r); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		first := records[0]
		if err := s.pg.RecordBatch(ctx, first.BatchID, first.ReceivedAt, len(records)); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	return nil
}

// Close shuts down whichever backends were opened.
func (s *Store) Close() error {
	var err error
	if s.ch != nil {
		err = s.ch.Close()
		s.ch = nil
	}
	if s.pg != nil {
		s.pg.Close()
		s.pg = nil
	}
	return err
}
