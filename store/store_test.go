package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio"
)

func sampleLedger(t *testing.T) *folio.Ledger {
	t.Helper()
	l := folio.NewLedger(folio.WithCashTracking())
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := l.Deposit(at, folio.M(10_000, "EUR"), decimal.NewFromInt(1))
	require.NoError(t, err)
	btc := folio.Instrument{ID: "btc", Kind: folio.Crypto, Symbol: "BTC", FeedKey: "bitcoin"}
	_, err = l.Buy(at.Add(time.Hour), btc, folio.Q(2), folio.M(1000, "EUR"))
	require.NoError(t, err)
	sell, err := l.Sell(at.Add(2*time.Hour), "btc", folio.Q(1), folio.M(1100, "EUR"))
	require.NoError(t, err)
	_, err = l.Reverse(sell.ID())
	require.NoError(t, err)
	return l
}

func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrEmpty, "loading an empty store")

	want := sampleLedger(t)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "loaded ledger differs from the saved one")
	assert.Equal(t, want.Cash().Amount().String(), got.Cash().Amount().String())

	// a second save replaces the snapshot, last write wins
	_, err = want.Buy(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		folio.Instrument{ID: "eth", Kind: folio.Crypto, Symbol: "ETH", FeedKey: "ethereum"},
		folio.Q(1), folio.M(500, "EUR"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, want))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestMemory(t *testing.T) { roundTrip(t, NewMemory()) }

func TestFile(t *testing.T) {
	roundTrip(t, NewFile(filepath.Join(t.TempDir(), "folio.jsonl")))
}

func TestFileGzip(t *testing.T) {
	roundTrip(t, NewFile(filepath.Join(t.TempDir(), "folio.jsonl.gz")))
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	defer s.Close()
	roundTrip(t, s)
}

func TestAsPersister(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	l := folio.NewLedger(folio.WithPersister(AsPersister(ctx, s)))

	btc := folio.Instrument{ID: "btc", Kind: folio.Crypto, Symbol: "BTC", FeedKey: "bitcoin"}
	_, err := l.Buy(time.Now(), btc, folio.Q(1), folio.M(100, "EUR"))
	require.NoError(t, err)

	// the mutation was snapshotted without an explicit Save
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, l.Equal(got))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		kind, path string
		wantErr    bool
		wantType   any
	}{
		{"memory", "", false, &Memory{}},
		{"mem", "", false, &Memory{}},
		{"file", filepath.Join(dir, "l.jsonl"), false, &File{}},
		{"sqlite", filepath.Join(dir, "l.db"), false, &SQLite{}},
		{"file", "", true, nil},
		{"sqlite", "", true, nil},
		{"bogus", "x", true, nil},
	}
	for _, tc := range cases {
		s, err := Open(tc.kind, tc.path)
		if tc.wantErr {
			assert.Error(t, err, "Open(%q, %q)", tc.kind, tc.path)
			continue
		}
		require.NoError(t, err, "Open(%q, %q)", tc.kind, tc.path)
		assert.IsType(t, tc.wantType, s)
	}
}
