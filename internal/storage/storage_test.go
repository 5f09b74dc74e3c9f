package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"asterix_codec/internal/codec"
	"asterix_codec/internal/schema"
	"asterix_codec/specs"
)

var northMarker = []byte{
	0x02, 0x00, 0x0A,
	0xD0,
	0x08, 0x0A,
	0x01,
	0x00, 0x32, 0x00,
}

func decodeTestBlock(t *testing.T) *codec.DecodedBlock {
	t.Helper()
	reg, err := schema.LoadAll(specs.Files)
	if err != nil {
		t.Fatalf("load specs: %v", err)
	}
	block := codec.New(reg).Decode(northMarker)
	if !block.Valid {
		t.Fatalf("block invalid: %s", block.Error)
	}
	return block
}

func TestFromBlock(t *testing.T) {
	block := decodeTestBlock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows, err := FromBlock("batch-1", at, northMarker, block)
	if err != nil {
		t.Fatalf("FromBlock: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	r := rows[0]
	if r.BatchID != "batch-1" || !r.ReceivedAt.Equal(at) {
		t.Errorf("row meta = %+v", r)
	}
	if r.Cat != 2 || r.SAC != 8 || r.SIC != 10 {
		t.Errorf("cat/sac/sic = %d/%d/%d, want 2/8/10", r.Cat, r.SAC, r.SIC)
	}
	if !r.Valid || r.Error != "" {
		t.Errorf("valid = %v error = %q", r.Valid, r.Error)
	}
	if r.RawHex != "02000ad0080a01003200" {
		t.Errorf("raw hex = %q", r.RawHex)
	}

	var rec codec.DecodedRecord
	if err := json.Unmarshal([]byte(r.DecodedJSON), &rec); err != nil {
		t.Fatalf("decoded json does not parse: %v", err)
	}
	if rec.Items["030"] == nil || rec.Items["030"].Fields["TOD"] != 12800 {
		t.Errorf("decoded json items = %v", rec.Items)
	}
}

func TestOpenRequiresBackend(t *testing.T) {
	_, err := Open(context.Background(), DefaultConfig())
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("Open with nothing enabled = %v, want ErrNoBackend", err)
	}
}

func TestStoreRecordsEmpty(t *testing.T) {
	// No backends and no records: nothing to do, no error.
	s := &Store{}
	if err := s.StoreRecords(context.Background(), nil); err != nil {
		t.Errorf("StoreRecords(nil) = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestSQLiteInsertAndQuery(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	block := decodeTestBlock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows, err := FromBlock("batch-1", at, northMarker, block)
	if err != nil {
		t.Fatal(err)
	}

	if err := db.InsertRecords(rows); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Empty insert is a no-op.
	if err := db.InsertRecords(nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}

	counts, err := db.CountByCategory()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[2] != 1 {
		t.Errorf("count cat 2 = %d, want 1", counts[2])
	}

	recent, err := db.RecentRecords(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent = %d rows, want 1", len(recent))
	}
	got := recent[0]
	if got.BatchID != "batch-1" || got.Cat != 2 || got.SAC != 8 || got.SIC != 10 || !got.Valid {
		t.Errorf("recent row = %+v", got)
	}
	if !got.ReceivedAt.Equal(at) {
		t.Errorf("received at = %v, want %v", got.ReceivedAt, at)
	}
}
