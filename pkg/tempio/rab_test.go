package tempio

import (
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

func testRABFileFactory(t *testing.T) RABFileFactory {
	dir := t.TempDir()
	var n int64
	return func(size int64) (ioface.RAB, error) {
		id := atomic.AddInt64(&n, 1)
		return store.NewFileStore(filepath.Join(dir, "rab-"+strconv.FormatInt(id, 10)), size)
	}
}

func testRABConfig(t *testing.T) RABConfig {
	return RABConfig{
		FileFactory: testRABFileFactory(t),
		Tracker:     ramtracker.New(),
		Now:         func() time.Time { return time.Unix(0, 0) },
	}
}

func TestTempRABRAMBackedPreadPwrite(t *testing.T) {
	cfg := testRABConfig(t)
	r, err := NewTempRAB(true, 8, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(8), cfg.Tracker.RAMInUse())

	require.NoError(t, r.Pwrite(0, []byte("abcdefgh")))
	buf := make([]byte, 8)
	require.NoError(t, r.Pread(0, buf))
	require.Equal(t, "abcdefgh", string(buf))
}

func TestTempRABMigratePreservesContentAndFreesTracker(t *testing.T) {
	cfg := testRABConfig(t)
	r, err := NewTempRAB(true, 8, cfg)
	require.NoError(t, err)
	require.NoError(t, r.Pwrite(0, []byte("abcdefgh")))

	require.NoError(t, r.Migrate())
	require.Equal(t, uint64(0), cfg.Tracker.RAMInUse())
	require.False(t, r.ramBacked)

	buf := make([]byte, 8)
	require.NoError(t, r.Pread(0, buf))
	require.Equal(t, "abcdefgh", string(buf))
}

func TestTempRABMigrateWhileLockedCarriesLockForward(t *testing.T) {
	cfg := testRABConfig(t)
	r, err := NewTempRAB(true, 4, cfg)
	require.NoError(t, err)

	lock, err := r.LockOpen()
	require.NoError(t, err)

	require.NoError(t, r.Migrate())
	require.False(t, r.ramBacked)

	lock.Release()
}

func TestTempRABDisposeIsIdempotentAndBlocksIO(t *testing.T) {
	cfg := testRABConfig(t)
	r, err := NewTempRAB(true, 4, cfg)
	require.NoError(t, err)

	require.NoError(t, r.Dispose())
	require.NoError(t, r.Dispose())

	err = r.Pwrite(0, []byte("a"))
	require.True(t, ioerr.Is(err, ioerr.Disposed))
	require.Equal(t, uint64(0), cfg.Tracker.RAMInUse())
}

func TestTempRABDiskBackedConstruction(t *testing.T) {
	cfg := testRABConfig(t)
	r, err := NewTempRAB(false, 4, cfg)
	require.NoError(t, err)
	require.False(t, r.ramBacked)

	require.NoError(t, r.Pwrite(0, []byte("zzzz")))
	buf := make([]byte, 4)
	require.NoError(t, r.Pread(0, buf))
	require.Equal(t, "zzzz", string(buf))

	require.NoError(t, r.Migrate())
}
