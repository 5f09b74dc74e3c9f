package ingest

import (
	"context"

	"asterix_codec/internal/storage"
)

// SQLiteSink archives records into a local SQLite database.
type SQLiteSink struct {
	DB *storage.SQLiteDB
}

// Store implements Sink.
func (s SQLiteSink) Store(_ context.Context, records []storage.Record) error {
	return s.DB.InsertRecords(records)
}

// StoreSink routes records through the combined ClickHouse/Postgres store.
type StoreSink struct {
	DB *storage.Store
}

// Store implements Sink.
func (s StoreSink) Store(ctx context.Context, records []storage.Record) error {
	return s.DB.StoreRecords(ctx, records)
}
