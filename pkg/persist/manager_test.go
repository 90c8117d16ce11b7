package persist

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/stretchr/testify/require"
)

func TestMakeBucketSameTransactionDisposesImmediately(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Dir: dir, Prefix: "t"})
	require.NoError(t, err)

	b, err := m.MakeBucket(0)
	require.NoError(t, err)

	w, err := b.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, b.Dispose())
	require.Equal(t, 0, m.PendingCount())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMakeBucketAcrossCommitDefersDisposal(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Dir: dir, Prefix: "t"})
	require.NoError(t, err)

	b, err := m.MakeBucket(0)
	require.NoError(t, err)
	w, err := b.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Simulate a checkpoint boundary crossing before dispose.
	_, ok := m.GrabBucketsToDispose()
	require.False(t, ok)

	require.NoError(t, b.Dispose())
	require.Equal(t, 1, m.PendingCount())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	list, ok := m.GrabBucketsToDispose()
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, 0, m.PendingCount())
	require.Equal(t, uint64(3), m.CommitID())

	m.FinishDelayedFree(list)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRegisterAndCompleteInitReconcilesOrphans(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "t-keep")
	drop := filepath.Join(dir, "t-drop")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(drop, []byte("y"), 0600))

	m, err := New(Config{Dir: dir, Prefix: "t"})
	require.NoError(t, err)
	require.Equal(t, 2, m.OrphanCount())

	require.NoError(t, m.Register(keep))
	require.Equal(t, 1, m.OrphanCount())

	require.NoError(t, m.CompleteInit())

	_, err = os.Stat(keep)
	require.NoError(t, err)
	_, err = os.Stat(drop)
	require.True(t, os.IsNotExist(err))

	// Second call is a no-op, not an error.
	require.NoError(t, m.CompleteInit())
}

func TestRegisterFailsAfterCompleteInit(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Dir: dir, Prefix: "t"})
	require.NoError(t, err)
	require.NoError(t, m.CompleteInit())

	err = m.Register(filepath.Join(dir, "whatever"))
	require.True(t, ioerr.Is(err, ioerr.ResumeFailed))
}

func TestMakeBucketEncryptedRoundTrips(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Dir: dir, Prefix: "t"})
	require.NoError(t, err)
	m.SetMasterSecret([]byte("supersecretkeymaterial"))

	b, err := m.MakeBucket(0)
	require.NoError(t, err)

	w, err := b.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("confidential"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := b.OpenReader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "confidential", string(got))

	require.NoError(t, b.Dispose())
}

func TestMakeBucketRespectsDiskSpaceChecker(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Dir: dir, Prefix: "t"})
	require.NoError(t, err)
	m.SetDiskSpaceChecker(func(sizeHint int64) error {
		return ioerr.New(ioerr.InsufficientDiskSpace, "test")
	})

	_, err = m.MakeBucket(1024)
	require.True(t, ioerr.Is(err, ioerr.InsufficientDiskSpace))
}
