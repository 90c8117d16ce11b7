package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/stretchr/testify/require"
)

func TestFileBucketStoreWriteCommitsAtomicallyThenReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.dat")
	s := NewFileBucketStore(path)

	_, err := s.OpenReader()
	require.True(t, ioerr.Is(err, ioerr.NotWrittenYet))

	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("payload"))
	require.Equal(t, int64(7), s.Size())

	r, err := s.OpenReader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
	require.NoError(t, r.Close())
}

func TestFileBucketStoreRejectsConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.dat")
	s := NewFileBucketStore(path)

	w1, err := s.OpenWriter()
	require.NoError(t, err)

	_, err = s.OpenWriter()
	require.True(t, ioerr.Is(err, ioerr.AlreadyOpen))

	require.NoError(t, w1.Close())
}

func TestFileBucketStoreWriterBlockedByOpenReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.dat")
	s := NewFileBucketStore(path)

	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("v1"))

	r, err := s.OpenReader()
	require.NoError(t, err)

	_, err = s.OpenWriter()
	require.True(t, ioerr.Is(err, ioerr.ConcurrentReaders))

	require.NoError(t, r.Close())

	w2, err := s.OpenWriter()
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestFileBucketStoreReaderBlockedByOpenWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.dat")
	s := NewFileBucketStore(path)

	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("v1"))

	w2, err := s.OpenWriter()
	require.NoError(t, err)

	_, err = s.OpenReader()
	require.True(t, ioerr.Is(err, ioerr.ConcurrentWriter))

	require.NoError(t, w2.Close())
}

func TestFileBucketStoreSplitYieldsConsecutiveRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.dat")
	s := NewFileBucketStore(path)
	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("0123456789"))

	it, err := s.Split(4)
	require.NoError(t, err)

	var sizes []int64
	for {
		slice, ok := it.Next()
		if !ok {
			break
		}
		sizes = append(sizes, slice.Size())
	}
	require.Equal(t, []int64{4, 4, 2}, sizes)
}

func TestFileBucketStoreTempExistsModeWritesPathDirectly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reserved.tmp")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s := NewFileBucketStoreTempExists(path)
	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("direct"))

	// No sibling temp file should ever have been created; the content
	// lands straight at path with no rename.
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "direct", string(got))

	r, err := s.OpenReader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "direct", string(data))
	require.NoError(t, r.Close())
}

func TestFileBucketStoreDisposeRemovesBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.dat")
	s := NewFileBucketStore(path)
	w, err := s.OpenWriter()
	require.NoError(t, err)
	writeAll(t, w, []byte("x"))

	require.NoError(t, s.Dispose())
	require.NoError(t, s.Dispose())

	_, err = s.OpenReader()
	require.True(t, ioerr.Is(err, ioerr.Disposed))
}
