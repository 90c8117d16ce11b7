package tempio

import (
	"sync"
	"time"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/hyphanet/support/pkg/store"
)

// RABFileFactory builds a fresh, empty disk-backed RAB sized for a
// migration target.
type RABFileFactory func(size int64) (ioface.RAB, error)

// RABConfig parameterizes a standalone TempRAB per SPEC_FULL.md §4.4.
type RABConfig struct {
	FileFactory RABFileFactory
	Tracker     *ramtracker.Tracker
	Now         func() time.Time
}

func (c RABConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// settableReadOnly is satisfied by every concrete store in this module;
// ioface.RAB itself has no SetReadOnly method since not every RAB
// implementation need expose a read-only latch.
type settableReadOnly interface {
	SetReadOnly()
}

// TempRAB is the switchable RAM/disk proxy for random-access containers
// (SPEC_FULL.md §4.4). A read-write lock guards underlying, the
// lock_open count, and the pinned underlying lock: Pread/Pwrite take
// the read lock, every state transition takes the write lock.
type TempRAB struct {
	rw sync.RWMutex

	cfg RABConfig

	underlying ioface.RAB
	ramBacked  bool
	size       int64

	disposed       bool
	lockOpenCount  int
	underlyingLock ioface.Lock

	handle *ramtracker.Handle

	// owner is set when this TempRAB was produced by
	// TempBucket.ToRandomAccess; disposal then runs through the shared
	// owner instead of disposing underlying directly.
	owner *sharedOwner
}

var _ ioface.RAB = (*TempRAB)(nil)

// NewTempRAB returns a standalone TempRAB of the given fixed size,
// starting RAM-backed (an in-memory array) if ramBacked is true, or
// disk-backed (via cfg.FileFactory) otherwise.
func NewTempRAB(ramBacked bool, size int64, cfg RABConfig) (*TempRAB, error) {
	t := &TempRAB{cfg: cfg, size: size, ramBacked: ramBacked}
	if ramBacked {
		t.underlying = store.NewMemoryRAB(size)
		t.handle = ramtracker.NewHandle(size, cfg.now())
		cfg.Tracker.Take(uint64(size))
		cfg.Tracker.Enqueue(t.handle)
		t.handle.SetMigratable(t)
		return t, nil
	}
	disk, err := cfg.FileFactory(size)
	if err != nil {
		return nil, err
	}
	t.underlying = disk
	return t, nil
}

// Size implements ioface.RAB.
func (t *TempRAB) Size() int64 { return t.size }

// Pread implements ioface.RAB.
func (t *TempRAB) Pread(offset int64, buf []byte) error {
	t.rw.RLock()
	defer t.rw.RUnlock()
	if t.disposed {
		return ioerr.New(ioerr.Disposed, "TempRAB.Pread")
	}
	return t.underlying.Pread(offset, buf)
}

// Pwrite implements ioface.RAB.
func (t *TempRAB) Pwrite(offset int64, buf []byte) error {
	t.rw.RLock()
	defer t.rw.RUnlock()
	if t.disposed {
		return ioerr.New(ioerr.Disposed, "TempRAB.Pwrite")
	}
	return t.underlying.Pwrite(offset, buf)
}

type tempRABLock struct {
	rab *TempRAB
}

func (l *tempRABLock) Release() {
	l.rab.rw.Lock()
	defer l.rab.rw.Unlock()
	l.rab.lockOpenCount--
	if l.rab.lockOpenCount <= 0 {
		l.rab.lockOpenCount = 0
		if l.rab.underlyingLock != nil {
			l.rab.underlyingLock.Release()
			l.rab.underlyingLock = nil
		}
	}
}

// LockOpen implements ioface.RAB. The first concurrent lock acquires
// the underlying resource's own lock; later ones share it. The
// underlying lock is released when the last handle is Released.
func (t *TempRAB) LockOpen() (ioface.Lock, error) {
	t.rw.Lock()
	defer t.rw.Unlock()
	if t.disposed {
		return nil, ioerr.New(ioerr.Disposed, "TempRAB.LockOpen")
	}
	if t.lockOpenCount == 0 {
		lk, err := t.underlying.LockOpen()
		if err != nil {
			return nil, err
		}
		t.underlyingLock = lk
	}
	t.lockOpenCount++
	return &tempRABLock{rab: t}, nil
}

// Close implements ioface.RAB. Idempotent.
func (t *TempRAB) Close() error { return nil }

// IsReadOnly implements ioface.RAB.
func (t *TempRAB) IsReadOnly() bool {
	t.rw.RLock()
	defer t.rw.RUnlock()
	return t.underlying.IsReadOnly()
}

// Dispose implements ioface.RAB. Idempotent.
func (t *TempRAB) Dispose() error {
	t.rw.Lock()
	defer t.rw.Unlock()
	if t.disposed {
		return nil
	}
	t.disposed = true

	if t.owner != nil {
		t.owner.disposeRAB()
		return nil
	}

	if t.ramBacked && t.handle != nil {
		t.cfg.Tracker.Remove(t.handle)
		t.cfg.Tracker.Free(uint64(t.size))
		t.handle = nil
	}
	return t.underlying.Dispose()
}

// Migrate copies the RAM-backed array out to a fresh disk-backed RAB
// and swaps it in, per SPEC_FULL.md §4.4. No-op if already disk-backed
// or disposed.
func (t *TempRAB) Migrate() error {
	t.rw.Lock()
	defer t.rw.Unlock()

	if !t.ramBacked || t.disposed {
		return nil
	}

	diskRAB, err := t.cfg.FileFactory(t.size)
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "TempRAB.migrate", err)
	}

	buf := make([]byte, t.size)
	if t.size > 0 {
		if err := t.underlying.Pread(0, buf); err != nil {
			return err
		}
		if err := diskRAB.Pwrite(0, buf); err != nil {
			return err
		}
	}
	if t.underlying.IsReadOnly() {
		if s, ok := diskRAB.(settableReadOnly); ok {
			s.SetReadOnly()
		}
	}

	var successorLock ioface.Lock
	if t.lockOpenCount > 0 {
		successorLock, err = diskRAB.LockOpen()
		if err != nil {
			return err
		}
	}
	if t.underlyingLock != nil {
		t.underlyingLock.Release()
	}

	oldUnderlying := t.underlying
	t.underlying = diskRAB
	t.ramBacked = false
	t.underlyingLock = successorLock

	if t.handle != nil {
		t.cfg.Tracker.Remove(t.handle)
		t.cfg.Tracker.Free(uint64(t.size))
		t.handle = nil
	}

	return oldUnderlying.Dispose()
}
