// Package ioface defines the container contracts every storage
// primitive, temp container, and wrapper in this module satisfies:
// Bucket (stream-oriented, single writer then many readers) and RAB
// (random-access, fixed-size). See SPEC_FULL.md §4.2.
package ioface

import "io"

// Writer is the one-shot stream returned by Bucket.OpenWriter. Writes
// are append-only and monotonic in size; Close publishes the bytes
// written so far as the bucket's committed contents and releases the
// writer slot.
type Writer interface {
	io.Writer
	io.Closer
}

// Reader is a stream returned by Bucket.OpenReader.
type Reader interface {
	io.Reader
	io.Closer
}

// Bucket is an opaque, logically append-only byte container: at most
// one writer may be open at a time; any number of readers may be open
// once the writer has been closed at least once.
//
// Invariants (SPEC_FULL.md §3):
//   - at most one active writer
//   - after SetReadOnly, OpenWriter fails with ioerr.ReadOnly
//   - after Dispose, every operation fails with ioerr.Disposed
type Bucket interface {
	// OpenWriter opens the single writer stream. Fails with
	// ioerr.AlreadyOpen if a writer is already open, ioerr.ReadOnly if
	// the bucket is latched read-only, ioerr.Disposed if disposed.
	OpenWriter() (Writer, error)

	// OpenReader opens a reader stream at position 0. Fails with
	// ioerr.NotWrittenYet if no writer has ever been opened,
	// ioerr.Disposed if disposed.
	OpenReader() (Reader, error)

	// Size returns the current committed size.
	Size() int64

	// IsReadOnly reports whether SetReadOnly has been called.
	IsReadOnly() bool

	// SetReadOnly latches the bucket read-only. Monotonic: once set, it
	// cannot be unset.
	SetReadOnly()

	// Close releases external streams but keeps the underlying data.
	// Idempotent.
	Close() error

	// Dispose releases the underlying data. Idempotent; implies Close.
	// Never returns an error that represents "already disposed" — a
	// second call is simply a no-op.
	Dispose() error

	// CreateShadow returns a read-only sibling sharing the same data,
	// per the concrete store's shadow semantics (SPEC_FULL.md §4.1).
	CreateShadow() (Bucket, error)
}

// RandomAccessBucket is a Bucket that can also be converted into a RAB.
type RandomAccessBucket interface {
	Bucket

	// ToRandomAccess refuses if any reader or writer is open, sets the
	// bucket read-only, and returns a RAB view over the same storage.
	// Freeing either the bucket or the returned RAB releases the
	// storage exactly once.
	ToRandomAccess() (RAB, error)
}

// Lock is a scoped handle returned by RAB.LockOpen. Release must be
// called exactly once; it is not itself idempotent (callers own exactly
// one release per acquired lock), matching the LIFO release invariant
// in SPEC_FULL.md §3.
type Lock interface {
	Release()
}

// RAB is a fixed-size, randomly addressable byte container.
//
// Invariants (SPEC_FULL.md §3):
//   - Size is immutable after construction
//   - reads/writes must lie fully within [0, Size())
//   - Dispose happens at most once and supersedes Close
type RAB interface {
	// Size returns the fixed size of the RAB.
	Size() int64

	// Pread reads exactly len(buf) bytes starting at offset. Fails with
	// ioerr.OutOfBounds if offset < 0 or offset+len(buf) > Size(),
	// without mutating buf.
	Pread(offset int64, buf []byte) error

	// Pwrite writes buf at offset. Fails with ioerr.ReadOnly if the RAB
	// is read-only, ioerr.OutOfBounds on the same conditions as Pread.
	Pwrite(offset int64, buf []byte) error

	// LockOpen acquires a scoped lock keeping the underlying resource
	// (e.g. a file descriptor) resident. Locks nest: multiple concurrent
	// holders are allowed, and the resource is only released once the
	// last lock is Released.
	LockOpen() (Lock, error)

	// Close releases external resources but keeps the data. Idempotent.
	Close() error

	// Dispose releases the underlying storage. Idempotent; implies
	// Close. A lock held at the time of Dispose does not prevent
	// disposal, but read/write calls racing with it may return
	// ioerr.Disposed.
	Dispose() error

	// IsReadOnly reports whether the RAB is latched read-only.
	IsReadOnly() bool
}
