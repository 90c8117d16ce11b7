package shareread

import (
	"io"
	"testing"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

func writtenReadOnlyStore(t *testing.T, data string) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	w, err := s.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	s.SetReadOnly()
	return s
}

func TestSharedThreeReadersTwoReleasedThenClose(t *testing.T) {
	inner := writtenReadOnlyStore(t, "0123456789")
	s := New(inner)

	r1, err := s.GetReader()
	require.NoError(t, err)
	r2, err := s.GetReader()
	require.NoError(t, err)
	r3, err := s.GetReader()
	require.NoError(t, err)
	require.Equal(t, 3, s.Refcount())

	require.NoError(t, r1.Release())
	require.NoError(t, r2.Release())
	require.Equal(t, 1, s.Refcount())

	require.NoError(t, s.Close())
	require.False(t, inner.IsDisposed())

	got, err := io.ReadAll(r3)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(got))

	require.NoError(t, r3.Release())
	require.True(t, inner.IsDisposed())
}

func TestSharedGetReaderFailsAfterClose(t *testing.T) {
	inner := writtenReadOnlyStore(t, "x")
	s := New(inner)
	require.NoError(t, s.Close())

	_, err := s.GetReader()
	require.True(t, ioerr.Is(err, ioerr.Closed))
}

func TestSharedReaderReadFailsAfterRelease(t *testing.T) {
	inner := writtenReadOnlyStore(t, "xy")
	s := New(inner)
	r, err := s.GetReader()
	require.NoError(t, err)
	require.NoError(t, r.Release())
	require.NoError(t, r.Release())

	_, err = r.Read(make([]byte, 1))
	require.True(t, ioerr.Is(err, ioerr.Closed))
}

func TestSharedClosesImmediatelyWhenNoReadersOutstanding(t *testing.T) {
	inner := writtenReadOnlyStore(t, "z")
	s := New(inner)
	r, err := s.GetReader()
	require.NoError(t, err)
	require.NoError(t, r.Release())

	require.NoError(t, s.Close())
	require.True(t, inner.IsDisposed())
}
