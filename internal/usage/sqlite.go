package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists usage records in a local sqlite database, one row
// per provider.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating usage dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening usage db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS api_usage (
			provider TEXT PRIMARY KEY,
			date     TEXT NOT NULL,
			count    INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Read(provider string) (Record, bool, error) {
	var rec Record
	err := s.db.QueryRow(
		"SELECT date, count FROM api_usage WHERE provider = ?", provider,
	).Scan(&rec.Date, &rec.Count)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading usage for %s: %w", provider, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Write(provider string, rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO api_usage (provider, date, count) VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			date = excluded.date,
			count = excluded.count
	`, provider, rec.Date, rec.Count)
	if err != nil {
		return fmt.Errorf("writing usage for %s: %w", provider, err)
	}
	return nil
}
