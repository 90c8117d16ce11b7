package wrap

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// RealDisposable is implemented by a delayed-dispose wrapper so its
// owning manager can eventually release the inner container.
type RealDisposable interface {
	RealDispose() error
}

// DelayedDisposer is the persistent-temp manager's view from this
// package's perspective: Dispose() on a wrapper enqueues into it rather
// than disposing immediately. Defined here (not imported from
// pkg/persist) to avoid a wrap↔persist import cycle — pkg/persist
// implements this interface.
type DelayedDisposer interface {
	DelayedDispose(disposable RealDisposable, createdCommitID uint64)
}

// DelayedDisposeBucket forwards every operation to Inner; Dispose does
// not call Inner.Dispose directly but instead enqueues into Manager,
// which decides (per SPEC_FULL.md §4.7) whether to dispose immediately
// or defer until after the next checkpoint. CreatedCommitID is the
// checkpoint generation this bucket was created under, recorded at
// construction, written by Serialize and restored as-is by
// DeserializeDelayedDisposeBucket (SPEC_FULL.md §4.9).
type DelayedDisposeBucket struct {
	mu              sync.Mutex
	Inner           ioface.Bucket
	Manager         DelayedDisposer
	CreatedCommitID uint64
	disposed        bool
}

var _ ioface.Bucket = (*DelayedDisposeBucket)(nil)
var _ RealDisposable = (*DelayedDisposeBucket)(nil)

func NewDelayedDisposeBucket(inner ioface.Bucket, manager DelayedDisposer, createdCommitID uint64) *DelayedDisposeBucket {
	return &DelayedDisposeBucket{Inner: inner, Manager: manager, CreatedCommitID: createdCommitID}
}

func (b *DelayedDisposeBucket) OpenWriter() (ioface.Writer, error) { return b.Inner.OpenWriter() }
func (b *DelayedDisposeBucket) OpenReader() (ioface.Reader, error) { return b.Inner.OpenReader() }
func (b *DelayedDisposeBucket) Size() int64                        { return b.Inner.Size() }
func (b *DelayedDisposeBucket) IsReadOnly() bool                   { return b.Inner.IsReadOnly() }
func (b *DelayedDisposeBucket) SetReadOnly()                       { b.Inner.SetReadOnly() }
func (b *DelayedDisposeBucket) Close() error                       { return b.Inner.Close() }

func (b *DelayedDisposeBucket) CreateShadow() (ioface.Bucket, error) { return b.Inner.CreateShadow() }

// Dispose flags the wrapper and enqueues into the manager exactly once.
func (b *DelayedDisposeBucket) Dispose() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return nil
	}
	b.disposed = true
	b.Manager.DelayedDispose(b, b.CreatedCommitID)
	return nil
}

// RealDispose forwards to the inner bucket. Called by the manager once
// the deferred disposal is safe to perform.
func (b *DelayedDisposeBucket) RealDispose() error {
	return b.Inner.Dispose()
}

// ToDispose reports whether this wrapper still needs real disposal.
// Always true: it is only ever handed to the manager's pending list
// once, by Dispose itself.
func (b *DelayedDisposeBucket) ToDispose() bool { return true }

// Serialize writes the delayed-dispose-bucket record (SPEC_FULL.md §6):
// magic, version, the commit id this wrapper was created under
// (recovered as-is on resume), then the inner container's serialized
// form.
func (b *DelayedDisposeBucket) Serialize(w io.Writer, innerSerialize func(io.Writer) error) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicDelayedDisposeBucket); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeBucket.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeBucket.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, b.CreatedCommitID); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeBucket.Serialize", err)
	}
	if err := bw.Flush(); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeBucket.Serialize", err)
	}
	return innerSerialize(w)
}

// DeserializeDelayedDisposeBucket reads the record written by Serialize
// and rebinds the wrapper to manager under the recovered commit id —
// per SPEC_FULL.md §4.9, the commit id is recovered as-is on resume
// rather than advanced, since the manager's own commit counter (not
// this field) is authoritative once running.
func DeserializeDelayedDisposeBucket(r io.Reader, manager DelayedDisposer, innerDeserialize func(io.Reader) (ioface.Bucket, error)) (*DelayedDisposeBucket, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeDelayedDisposeBucket", err)
	}
	if magic != MagicDelayedDisposeBucket {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeDelayedDisposeBucket")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeDelayedDisposeBucket", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeDelayedDisposeBucket")
	}
	var commitID uint64
	if err := binary.Read(r, binary.BigEndian, &commitID); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeDelayedDisposeBucket", err)
	}
	inner, err := innerDeserialize(r)
	if err != nil {
		return nil, err
	}
	return NewDelayedDisposeBucket(inner, manager, commitID), nil
}

// DelayedDisposeRAB is the RAB analogue of DelayedDisposeBucket.
type DelayedDisposeRAB struct {
	mu              sync.Mutex
	Inner           ioface.RAB
	Manager         DelayedDisposer
	CreatedCommitID uint64
	disposed        bool
}

var _ ioface.RAB = (*DelayedDisposeRAB)(nil)
var _ RealDisposable = (*DelayedDisposeRAB)(nil)

func NewDelayedDisposeRAB(inner ioface.RAB, manager DelayedDisposer, createdCommitID uint64) *DelayedDisposeRAB {
	return &DelayedDisposeRAB{Inner: inner, Manager: manager, CreatedCommitID: createdCommitID}
}

func (r *DelayedDisposeRAB) Size() int64 { return r.Inner.Size() }

// getUnderlying returns the inner RAB, or nullSentinelRAB{} (the
// DESIGN.md open-question #3 sentinel) once disposed, so a racing
// Pread/Pwrite fails with ioerr.Disposed instead of touching a freed
// resource.
func (r *DelayedDisposeRAB) getUnderlying() ioface.RAB {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nullSentinelRAB{}
	}
	return r.Inner
}

func (r *DelayedDisposeRAB) Pread(offset int64, buf []byte) error {
	return r.getUnderlying().Pread(offset, buf)
}

func (r *DelayedDisposeRAB) Pwrite(offset int64, buf []byte) error {
	return r.getUnderlying().Pwrite(offset, buf)
}

func (r *DelayedDisposeRAB) LockOpen() (ioface.Lock, error) { return r.getUnderlying().LockOpen() }
func (r *DelayedDisposeRAB) Close() error                   { return r.Inner.Close() }
func (r *DelayedDisposeRAB) IsReadOnly() bool               { return r.Inner.IsReadOnly() }

func (r *DelayedDisposeRAB) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil
	}
	r.disposed = true
	r.Manager.DelayedDispose(r, r.CreatedCommitID)
	return nil
}

func (r *DelayedDisposeRAB) RealDispose() error {
	return r.Inner.Dispose()
}

// ToDispose reports whether this wrapper still needs real disposal.
// Always true, for the same reason as DelayedDisposeBucket.ToDispose.
func (r *DelayedDisposeRAB) ToDispose() bool { return true }

// Serialize writes the delayed-dispose-RAB record (SPEC_FULL.md §6):
// magic, version, the commit id this wrapper was created under, then
// the inner RAB's serialized form.
func (r *DelayedDisposeRAB) Serialize(w io.Writer, innerSerialize func(io.Writer) error) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicDelayedDisposeRAB); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeRAB.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeRAB.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, r.CreatedCommitID); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeRAB.Serialize", err)
	}
	if err := bw.Flush(); err != nil {
		return ioerr.Wrap(ioerr.IO, "DelayedDisposeRAB.Serialize", err)
	}
	return innerSerialize(w)
}

// DeserializeDelayedDisposeRAB is the RAB analogue of
// DeserializeDelayedDisposeBucket.
func DeserializeDelayedDisposeRAB(r io.Reader, manager DelayedDisposer, innerDeserialize func(io.Reader) (ioface.RAB, error)) (*DelayedDisposeRAB, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeDelayedDisposeRAB", err)
	}
	if magic != MagicDelayedDisposeRAB {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeDelayedDisposeRAB")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeDelayedDisposeRAB", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeDelayedDisposeRAB")
	}
	var commitID uint64
	if err := binary.Read(r, binary.BigEndian, &commitID); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeDelayedDisposeRAB", err)
	}
	inner, err := innerDeserialize(r)
	if err != nil {
		return nil, err
	}
	return NewDelayedDisposeRAB(inner, manager, commitID), nil
}
