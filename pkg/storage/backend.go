package storage

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// ResultRecord is one pipeline outcome as persisted in the history table.
type ResultRecord struct {
	ID          int64
	Session     string
	Algorithm   string
	Name        string
	Inputs      string
	Output      string
	Records     int64
	Malformed   int64
	Runs        int
	MergePasses int
	Bytes       int64
	DurationMS  int64
	Status      string
	Error       string
	Fingerprint string
	StartedAt   int64 // unix nanoseconds
}

type Backend interface {
	Write(rec ResultRecord) error
	BatchWrite(records []ResultRecord) error
	Recent(limit int) ([]ResultRecord, error)
	Session(session string) ([]ResultRecord, error)
	Close()
	Truncate() error
}

type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex
}

const resultColumns = `session, algorithm, name, inputs, output, records, malformed, runs,
	merge_passes, bytes, duration_ms, status, error, fingerprint, started_at`

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		name TEXT,
		inputs TEXT,
		output TEXT,
		records INTEGER,
		malformed INTEGER,
		runs INTEGER,
		merge_passes INTEGER,
		bytes INTEGER,
		duration_ms INTEGER,
		status TEXT,
		error TEXT,
		fingerprint TEXT,
		started_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS results_session ON results(session);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init results table: %w", err)
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		log.Printf("Warning: Failed to set PRAGMA: %v", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Write(rec ResultRecord) error {
	return s.BatchWrite([]ResultRecord{rec})
}

func (s *SQLiteBackend) BatchWrite(records []ResultRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO results (" + resultColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Session, r.Algorithm, r.Name, r.Inputs, r.Output, r.Records, r.Malformed,
			r.Runs, r.MergePasses, r.Bytes, r.DurationMS, r.Status, r.Error, r.Fingerprint, r.StartedAt); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Recent returns up to limit rows, newest first.
func (s *SQLiteBackend) Recent(limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query("SELECT id, "+resultColumns+" FROM results ORDER BY id DESC LIMIT ?", limit)
}

// Session returns the rows of one coordinator session in insertion order.
func (s *SQLiteBackend) Session(session string) ([]ResultRecord, error) {
	return s.query("SELECT id, "+resultColumns+" FROM results WHERE session = ? ORDER BY id ASC", session)
}

func (s *SQLiteBackend) query(q string, args ...any) ([]ResultRecord, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.ID, &r.Session, &r.Algorithm, &r.Name, &r.Inputs, &r.Output, &r.Records,
			&r.Malformed, &r.Runs, &r.MergePasses, &r.Bytes, &r.DurationMS, &r.Status, &r.Error,
			&r.Fingerprint, &r.StartedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteBackend) Truncate() error {
	_, err := s.db.Exec("DELETE FROM results")
	return err
}

func (s *SQLiteBackend) Close() {
	s.db.Close()
}
