package store

import (
	"io"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// NullStore sinks every write and answers every read with EOF. Its size
// is fixed at construction rather than accumulated from writes — it
// exists for callers that need a valid Bucket handle with no storage
// cost, e.g. tests or "write it nowhere" configurations.
type NullStore struct {
	size     int64
	readOnly bool
	disposed bool
}

var _ ioface.Bucket = (*NullStore)(nil)

// NewNullStore returns a NullStore reporting the given fixed size.
func NewNullStore(size int64) *NullStore {
	return &NullStore{size: size}
}

type nullWriter struct{ store *NullStore }

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }
func (nullWriter) Close() error                { return nil }

func (s *NullStore) OpenWriter() (ioface.Writer, error) {
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "NullStore.OpenWriter")
	}
	if s.readOnly {
		return nil, ioerr.New(ioerr.ReadOnly, "NullStore.OpenWriter")
	}
	return nullWriter{s}, nil
}

type nullReader struct{}

func (nullReader) Read(p []byte) (int, error) { return 0, io.EOF }
func (nullReader) Close() error               { return nil }

func (s *NullStore) OpenReader() (ioface.Reader, error) {
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "NullStore.OpenReader")
	}
	return nullReader{}, nil
}

func (s *NullStore) Size() int64        { return s.size }
func (s *NullStore) IsReadOnly() bool   { return s.readOnly }
func (s *NullStore) SetReadOnly()       { s.readOnly = true }
func (s *NullStore) Close() error       { return nil }
func (s *NullStore) Dispose() error     { s.disposed = true; return nil }

// CreateShadow returns another NullStore of the same size, per
// SPEC_FULL.md §4.1 ("shadow-copy is another NullStore").
func (s *NullStore) CreateShadow() (ioface.Bucket, error) {
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "NullStore.CreateShadow")
	}
	return NewNullStore(s.size), nil
}

// NullRAB is a fixed-size RAB that discards writes and reads as zeros.
// It is not the post-dispose sentinel of DelayedDisposeRAB (DESIGN.md
// open-question #3); that role is filled by pkg/wrap's nullSentinelRAB.
type NullRAB struct {
	size     int64
	readOnly bool
	disposed bool
}

var _ ioface.RAB = (*NullRAB)(nil)

// NewNullRAB returns a NullRAB of the given fixed size.
func NewNullRAB(size int64) *NullRAB {
	return &NullRAB{size: size}
}

func (r *NullRAB) Size() int64 { return r.size }

func (r *NullRAB) Pread(offset int64, buf []byte) error {
	if r.disposed {
		return ioerr.New(ioerr.Disposed, "NullRAB.Pread")
	}
	if offset < 0 || offset+int64(len(buf)) > r.size {
		return ioerr.New(ioerr.OutOfBounds, "NullRAB.Pread")
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (r *NullRAB) Pwrite(offset int64, buf []byte) error {
	if r.disposed {
		return ioerr.New(ioerr.Disposed, "NullRAB.Pwrite")
	}
	if r.readOnly {
		return ioerr.New(ioerr.ReadOnly, "NullRAB.Pwrite")
	}
	if offset < 0 || offset+int64(len(buf)) > r.size {
		return ioerr.New(ioerr.OutOfBounds, "NullRAB.Pwrite")
	}
	return nil
}

func (r *NullRAB) LockOpen() (ioface.Lock, error) {
	if r.disposed {
		return nil, ioerr.New(ioerr.Disposed, "NullRAB.LockOpen")
	}
	return memRABLock{}, nil
}

func (r *NullRAB) Close() error      { return nil }
func (r *NullRAB) Dispose() error    { r.disposed = true; return nil }
func (r *NullRAB) IsReadOnly() bool  { return r.readOnly }
