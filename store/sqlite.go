package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"folio"
)

// SQLite stores the snapshot as a single row in a SQLite database.
// The JSONL payload stays the one canonical encoding; the database adds
// durable, transactional replacement.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	payload  BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL
);`

// OpenSQLite opens (and initializes) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store %q: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing sqlite store %q: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (*folio.Ledger, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("loading sqlite snapshot: %w", err)
	}
	return folio.DecodeLedger(bytes.NewReader(payload))
}

func (s *SQLite) Save(ctx context.Context, l *folio.Ledger) error {
	var buf bytes.Buffer
	if err := folio.EncodeLedger(&buf, l); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, payload, saved_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		buf.Bytes(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving sqlite snapshot: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }
