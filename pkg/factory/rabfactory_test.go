package factory

import (
	"testing"
	"time"

	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/stretchr/testify/require"
)

func testRABFactoryConfig(t *testing.T, maxSingleRAM, ramPoolSize int64, scheduleCleaner func()) RABConfig {
	return RABConfig{
		Dir:             t.TempDir(),
		Prefix:          "rab",
		MaxSingleRAM:    maxSingleRAM,
		RAMPoolSize:     ramPoolSize,
		MinDiskSpace:    0,
		Tracker:         ramtracker.New(),
		ScheduleCleaner: scheduleCleaner,
		Now:             func() time.Time { return time.Unix(0, 0) },
	}
}

func TestMakeRABEligibleStaysInMemory(t *testing.T) {
	f, err := NewRABFactory(testRABFactoryConfig(t, 1024, 4096, nil))
	require.NoError(t, err)

	rab, err := f.MakeRAB(32)
	require.NoError(t, err)
	require.Equal(t, int64(32), rab.Size())

	require.NoError(t, rab.Pwrite(0, []byte("0123456789abcdef0123456789abcdef")[:32]))
	buf := make([]byte, 32)
	require.NoError(t, rab.Pread(0, buf))
}

func TestMakeRABOversizeGoesToDisk(t *testing.T) {
	f, err := NewRABFactory(testRABFactoryConfig(t, 4, 4096, nil))
	require.NoError(t, err)

	rab, err := f.MakeRAB(64)
	require.NoError(t, err)
	require.Equal(t, int64(64), rab.Size())

	require.NoError(t, rab.Pwrite(0, []byte("x")))
}

func TestMakeRABSchedulesCleanerAtHighWater(t *testing.T) {
	var scheduled int
	cfg := testRABFactoryConfig(t, 1000, 100, func() { scheduled++ })
	f, err := NewRABFactory(cfg)
	require.NoError(t, err)

	cfg.Tracker.Take(95)

	_, err = f.MakeRAB(1)
	require.NoError(t, err)
	require.Equal(t, 1, scheduled)
}
