package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(
		filepath.Join(t.TempDir(), "data", DefaultDBName),
		DefaultOpenTimeout,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func testRecord(address string, attempts uint64) *Record {
	res := &generator.Result{
		Format:     generator.FormatTaproot,
		Address:    address,
		PrivateKey: "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn",
		Attempts:   attempts,
	}
	req := &generator.Request{
		Format:   generator.FormatTaproot,
		Pattern:  "dead",
		Position: generator.PositionEnd,
	}

	return NewRecord(res, req, SourceWebSocket)
}

func TestSaveAndFetch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	created := time.Unix(1_700_000_000, 42)
	rec := testRecord("bc1pdead", 1234)
	rec.CreatedAt = created
	require.NoError(t, s.Save(rec))
	require.Equal(t, uint64(1), rec.ID)

	got, err := s.Fetch(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Address, got.Address)
	require.Equal(t, rec.PrivateKey, got.PrivateKey)
	require.Equal(t, generator.FormatTaproot, got.Format)
	require.Equal(t, "dead", got.Pattern)
	require.Equal(t, generator.PositionEnd, got.Position)
	require.Equal(t, uint64(1234), got.Attempts)
	require.Equal(t, SourceWebSocket, got.Source)
	require.True(t, created.Equal(got.CreatedAt))

	_, err = s.Fetch(99)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSaveSetsCreatedAt(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	before := time.Now()
	rec := testRecord("bc1pnow", 1)
	require.NoError(t, s.Save(rec))
	require.False(t, rec.CreatedAt.Before(before))
}

func TestRecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	addresses := []string{"bc1pa", "bc1pb", "bc1pc", "bc1pd"}
	for i, addr := range addresses {
		require.NoError(t, s.Save(testRecord(addr, uint64(i+1))))
	}

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, len(addresses), n)

	recent, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "bc1pd", recent[0].Address)
	require.Equal(t, "bc1pc", recent[1].Address)
	require.Equal(t, uint64(4), recent[0].ID)

	all, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, all, len(addresses))
	require.Equal(t, "bc1pa", all[len(all)-1].Address)
}

func TestReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultDBName)

	s, err := Open(path, DefaultOpenTimeout)
	require.NoError(t, err)
	require.NoError(t, s.Save(testRecord("1Persist", 7)))
	require.NoError(t, s.Close())

	s, err = Open(path, DefaultOpenTimeout)
	require.NoError(t, err)
	defer s.Close()

	recent, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "1Persist", recent[0].Address)

	// Sequence numbers continue after a reopen.
	rec := testRecord("1Next", 8)
	require.NoError(t, s.Save(rec))
	require.Equal(t, uint64(2), rec.ID)
}
