// Package store persists ledger snapshots. Adapters share one narrow
// contract so the accounting logic never knows the storage medium:
// memory for tests and UI-local use, plain or gzip JSONL files, and a
// SQLite database.
//
// Concurrent writers follow last-write-wins: each Save replaces the
// whole snapshot, there is no merging.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"folio"
)

// ErrEmpty reports that the store holds no snapshot yet.
var ErrEmpty = errors.New("store is empty")

// Store loads and saves ledger snapshots.
type Store interface {
	// Load returns the stored ledger, or ErrEmpty when none was saved.
	Load(ctx context.Context) (*folio.Ledger, error)
	// Save replaces the stored snapshot with l.
	Save(ctx context.Context, l *folio.Ledger) error
}

// AsPersister adapts a store to the ledger's Persister hook, so every
// successful mutation is snapshotted.
func AsPersister(ctx context.Context, s Store) folio.Persister {
	return folio.PersisterFunc(func(l *folio.Ledger) error {
		return s.Save(ctx, l)
	})
}

// Open builds a store from a kind name and a path:
//
//	memory        path ignored
//	file          JSONL file, gzip-compressed when path ends in .gz
//	sqlite        SQLite database file
func Open(kind, path string) (Store, error) {
	switch strings.ToLower(kind) {
	case "memory", "mem":
		return NewMemory(), nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file store needs a path")
		}
		return NewFile(path), nil
	case "sqlite":
		if path == "" {
			return nil, fmt.Errorf("sqlite store needs a path")
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
