package wrap

import (
	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// nullSentinelRAB answers every operation with ioerr.Disposed. It is
// what DelayedDisposeRAB.getUnderlying returns once the wrapper has
// been disposed, so a racing caller gets a clean error instead of
// reaching into a freed resource (SPEC_FULL.md / DESIGN.md open
// question #3).
type nullSentinelRAB struct{}

var _ ioface.RAB = nullSentinelRAB{}

func (nullSentinelRAB) Size() int64 { return 0 }

func (nullSentinelRAB) Pread(int64, []byte) error {
	return ioerr.New(ioerr.Disposed, "DelayedDisposeRAB.Pread")
}

func (nullSentinelRAB) Pwrite(int64, []byte) error {
	return ioerr.New(ioerr.Disposed, "DelayedDisposeRAB.Pwrite")
}

func (nullSentinelRAB) LockOpen() (ioface.Lock, error) {
	return nil, ioerr.New(ioerr.Disposed, "DelayedDisposeRAB.LockOpen")
}

func (nullSentinelRAB) Close() error   { return nil }
func (nullSentinelRAB) Dispose() error { return nil }
func (nullSentinelRAB) IsReadOnly() bool { return false }
