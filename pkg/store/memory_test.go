package store

import (
	"io"
	"testing"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/stretchr/testify/require"
)

func writeAll(t *testing.T, w io.WriteCloser, data []byte) {
	t.Helper()
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestMemoryStoreWriteThenRead(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.OpenReader()
	require.True(t, ioerr.Is(err, ioerr.NotWrittenYet))

	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("hello"))

	require.Equal(t, int64(5), s.Size())

	r, err := s.OpenReader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.NoError(t, r.Close())
}

func TestMemoryStoreSingleWriter(t *testing.T) {
	s := NewMemoryStore()
	w1, err := s.OpenWriter()
	require.NoError(t, err)

	_, err = s.OpenWriter()
	require.True(t, ioerr.Is(err, ioerr.AlreadyOpen))

	require.NoError(t, w1.Close())
	w2, err := s.OpenWriter()
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestMemoryStoreReadOnlyRejectsWriter(t *testing.T) {
	s := NewMemoryStore()
	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("x"))

	s.SetReadOnly()
	_, err = s.OpenWriter()
	require.True(t, ioerr.Is(err, ioerr.ReadOnly))
}

func TestMemoryStoreDisposeIsIdempotentAndBlocksAccess(t *testing.T) {
	s := NewMemoryStore()
	w, _ := s.OpenWriter()
	writeAll(t, w, []byte("x"))

	require.NoError(t, s.Dispose())
	require.NoError(t, s.Dispose())

	_, err := s.OpenReader()
	require.True(t, ioerr.Is(err, ioerr.Disposed))
	_, err = s.OpenWriter()
	require.True(t, ioerr.Is(err, ioerr.Disposed))
}

func TestMemoryStoreCreateShadowIsIndependentSnapshot(t *testing.T) {
	s := NewMemoryStore()
	w, _ := s.OpenWriter()
	writeAll(t, w, []byte("v1"))

	shadow, err := s.CreateShadow()
	require.NoError(t, err)
	require.True(t, shadow.IsReadOnly())

	w2, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w2, []byte("v2"))

	r, err := shadow.OpenReader()
	require.NoError(t, err)
	got, _ := io.ReadAll(r)
	require.Equal(t, "v1", string(got))
}

func TestMemoryRABPreadPwriteAndBounds(t *testing.T) {
	r := NewMemoryRAB(8)
	require.Equal(t, int64(8), r.Size())

	require.NoError(t, r.Pwrite(2, []byte("ab")))
	buf := make([]byte, 2)
	require.NoError(t, r.Pread(2, buf))
	require.Equal(t, "ab", string(buf))

	err := r.Pread(7, make([]byte, 4))
	require.True(t, ioerr.Is(err, ioerr.OutOfBounds))

	err = r.Pwrite(-1, []byte("a"))
	require.True(t, ioerr.Is(err, ioerr.OutOfBounds))
}

func TestMemoryRABReadOnlyRejectsWrite(t *testing.T) {
	r := NewMemoryRAB(4)
	r.SetReadOnly()
	err := r.Pwrite(0, []byte("a"))
	require.True(t, ioerr.Is(err, ioerr.ReadOnly))
}

func TestMemoryRABLockOpenAfterDispose(t *testing.T) {
	r := NewMemoryRAB(4)
	require.NoError(t, r.Dispose())
	_, err := r.LockOpen()
	require.True(t, ioerr.Is(err, ioerr.Disposed))
}
