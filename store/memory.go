package store

import (
	"bytes"
	"context"
	"sync"

	"folio"
)

// Memory keeps the latest snapshot in memory, encoded like the file
// store so that codec problems surface in tests too. Safe for
// concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (*folio.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrEmpty
	}
	return folio.DecodeLedger(bytes.NewReader(m.data))
}

func (m *Memory) Save(ctx context.Context, l *folio.Ledger) error {
	var buf bytes.Buffer
	if err := folio.EncodeLedger(&buf, l); err != nil {
		return err
	}
	m.mu.Lock()
	m.data = buf.Bytes()
	m.mu.Unlock()
	return nil
}
