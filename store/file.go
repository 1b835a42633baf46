package store

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"folio"
)

// File stores the snapshot as a JSONL file, gzip-compressed when the
// path ends in .gz. Saves go through a temporary file and rename so a
// crash never leaves a half-written snapshot.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) gzipped() bool { return strings.HasSuffix(f.path, ".gz") }

func (f *File) Load(ctx context.Context) (*folio.Ledger, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %q: %w", f.path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if f.gzipped() {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("reading gzip snapshot %q: %w", f.path, err)
		}
		defer gz.Close()
		r = gz
	}
	return folio.DecodeLedger(r)
}

func (f *File) Save(ctx context.Context, l *folio.Ledger) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var w io.WriteCloser = tmp
	var gz *gzip.Writer
	if f.gzipped() {
		gz = gzip.NewWriter(tmp)
		w = gz
	}
	if err := folio.EncodeLedger(w, l); err != nil {
		tmp.Close()
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			tmp.Close()
			return fmt.Errorf("flushing gzip snapshot: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing snapshot %q: %w", f.path, err)
	}
	return nil
}
