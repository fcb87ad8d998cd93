package persist

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a single-table embedded sqlite
// database — a real database standing in for a "process-wide key-value
// store" per SPEC_FULL.md §11, in the style of the pack's store.go
// persistence layers (one row per key, last-writer-wins on conflict).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) a sqlite database at path
// and ensures the kv schema exists.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer connection avoids SQLITE_BUSY

	const schema = `CREATE TABLE IF NOT EXISTS kv_int (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetInt(ctx context.Context, key string) (int, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM kv_int WHERE key = ?`, key)
	var v int
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("persist: get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetInt(ctx context.Context, key string, value int) error {
	const upsert = `INSERT INTO kv_int (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, upsert, key, value); err != nil {
		return fmt.Errorf("persist: set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
