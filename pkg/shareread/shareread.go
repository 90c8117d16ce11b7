/*
Package shareread implements the multi-reader reference-counted sharing
wrapper of SPEC_FULL.md §4.8 / C8: any number of readers may be
acquired over a single read-only store; the store is disposed exactly
once, when the last acquired reader is released after the wrapper
itself has been closed.
*/
package shareread

import (
	"sync"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// Shared wraps a read-only Bucket and hands out refcounted readers over
// it. Close does not free the underlying store immediately if readers
// are still outstanding; the store is released when the refcount drops
// to zero, whichever of Close or the last Release happens last.
type Shared struct {
	mu       sync.Mutex
	inner    ioface.Bucket
	refcount int
	closed   bool
	disposed bool
}

// New wraps inner, which must already be read-only and fully written.
func New(inner ioface.Bucket) *Shared {
	return &Shared{inner: inner}
}

// GetReader returns a new handle over the underlying store and
// increments the refcount, or ioerr.Closed if the wrapper has already
// been closed.
func (s *Shared) GetReader() (*SharedReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ioerr.New(ioerr.Closed, "Shared.GetReader")
	}

	r, err := s.inner.OpenReader()
	if err != nil {
		return nil, err
	}
	s.refcount++
	return &SharedReader{owner: s, inner: r}, nil
}

// release is called by a SharedReader's Release/Close. It decrements
// the refcount and disposes the underlying store exactly once, the
// moment the count reaches zero and the wrapper has been closed.
func (s *Shared) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refcount > 0 {
		s.refcount--
	}
	s.maybeDisposeLocked()
}

func (s *Shared) maybeDisposeLocked() {
	if s.closed && s.refcount == 0 && !s.disposed {
		s.disposed = true
		s.inner.Dispose()
	}
}

// Close flags the wrapper closed: no further readers may be acquired,
// and the underlying store is disposed as soon as the outstanding
// refcount reaches zero (immediately, if it already is). Idempotent.
func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.maybeDisposeLocked()
	return nil
}

// Refcount reports the number of readers currently acquired but not
// yet released.
func (s *Shared) Refcount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refcount
}

// SharedReader is one handle returned by Shared.GetReader. It validates
// on every read that neither it nor its owner has been released.
type SharedReader struct {
	owner    *Shared
	inner    ioface.Reader
	released bool
}

func (r *SharedReader) Read(p []byte) (int, error) {
	r.owner.mu.Lock()
	released := r.released
	disposed := r.owner.disposed
	r.owner.mu.Unlock()
	if released {
		return 0, ioerr.New(ioerr.Closed, "SharedReader.Read")
	}
	if disposed {
		return 0, ioerr.New(ioerr.Disposed, "SharedReader.Read")
	}
	return r.inner.Read(p)
}

// Release closes the underlying reader stream and decrements the
// wrapper's refcount. Idempotent.
func (r *SharedReader) Release() error {
	r.owner.mu.Lock()
	if r.released {
		r.owner.mu.Unlock()
		return nil
	}
	r.released = true
	r.owner.mu.Unlock()

	err := r.inner.Close()
	r.owner.release()
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "SharedReader.Release", err)
	}
	return nil
}

// Close is an alias for Release, satisfying io.Closer.
func (r *SharedReader) Close() error { return r.Release() }
