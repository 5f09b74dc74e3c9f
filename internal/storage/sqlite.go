package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDB wraps a SQLite database connection for local record archiving.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		received_at TEXT NOT NULL,
		cat INTEGER NOT NULL,
		sac INTEGER NOT NULL,
		sic INTEGER NOT NULL,
		uap_variation TEXT,
		valid INTEGER NOT NULL,
		error TEXT,
		raw_hex TEXT NOT NULL,
		decoded_json TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_records_batch ON records(batch_id);
	CREATE INDEX IF NOT EXISTS idx_records_cat ON records(cat);
	CREATE INDEX IF NOT EXISTS idx_records_sensor ON records(sac, sic);
	CREATE INDEX IF NOT EXISTS idx_records_received ON records(received_at);
	`

	_, err := db.Exec(schema)
	return err
}

// InsertRecords stores decoded records in one transaction.
func (d *SQLiteDB) InsertRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO records (batch_id, received_at, cat, sac, sic, uap_variation, valid, error, raw_hex, decoded_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		valid := 0
		if r.Valid {
			valid = 1
		}
		if _, err := stmt.Exec(r.BatchID, r.ReceivedAt.UTC().Format("2006-01-02 15:04:05.000"),
			r.Cat, r.SAC, r.SIC, r.Variation, valid, r.Error, r.RawHex, r.DecodedJSON); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	return tx.Commit()
}

// CountByCategory returns record counts grouped by category.
func (d *SQLiteDB) CountByCategory() (map[uint8]int64, error) {
	rows, err := d.db.Query("SELECT cat, COUNT(*) FROM records GROUP BY cat")
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[uint8]int64)
	for rows.Next() {
		var cat uint8
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

// RecentRecords returns the most recently stored records, newest first.
func (d *SQLiteDB) RecentRecords(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.Query(`
		SELECT batch_id, received_at, cat, sac, sic, uap_variation, valid, error, raw_hex, decoded_json
		FROM records ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var received string
		var valid int
		if err := rows.Scan(&r.BatchID, &received, &r.Cat, &r.SAC, &r.SIC,
			&r.Variation, &valid, &r.Error, &r.RawHex, &r.DecodedJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Valid = valid != 0
		if ts, err := time.Parse("2006-01-02 15:04:05.000", received); err == nil {
			r.ReceivedAt = ts.UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
