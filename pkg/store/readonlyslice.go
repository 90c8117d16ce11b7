package store

import (
	"io"
	"os"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// ReadOnlySliceStore is a read-only Bucket over [offset, offset+length)
// of a file. It never opens a writer: OpenWriter always fails with
// ioerr.ReadOnly.
type ReadOnlySliceStore struct {
	path     string
	offset   int64
	length   int64
	disposed bool
}

var _ ioface.Bucket = (*ReadOnlySliceStore)(nil)

// NewReadOnlySliceStore returns a read-only view over a byte range of path.
func NewReadOnlySliceStore(path string, offset, length int64) *ReadOnlySliceStore {
	return &ReadOnlySliceStore{path: path, offset: offset, length: length}
}

func (s *ReadOnlySliceStore) OpenWriter() (ioface.Writer, error) {
	return nil, ioerr.New(ioerr.ReadOnly, "ReadOnlySliceStore.OpenWriter")
}

type sliceReader struct {
	f   *os.File
	sec *io.SectionReader
}

func (r *sliceReader) Read(p []byte) (int, error) { return r.sec.Read(p) }
func (r *sliceReader) Close() error                { return r.f.Close() }

func (s *ReadOnlySliceStore) OpenReader() (ioface.Reader, error) {
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "ReadOnlySliceStore.OpenReader")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "ReadOnlySliceStore.OpenReader", err)
	}
	return &sliceReader{f: f, sec: io.NewSectionReader(f, s.offset, s.length)}, nil
}

func (s *ReadOnlySliceStore) Size() int64      { return s.length }
func (s *ReadOnlySliceStore) IsReadOnly() bool { return true }
func (s *ReadOnlySliceStore) SetReadOnly()     {}
func (s *ReadOnlySliceStore) Close() error     { return nil }

func (s *ReadOnlySliceStore) Dispose() error {
	s.disposed = true
	return nil
}

func (s *ReadOnlySliceStore) CreateShadow() (ioface.Bucket, error) {
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "ReadOnlySliceStore.CreateShadow")
	}
	return NewReadOnlySliceStore(s.path, s.offset, s.length), nil
}

// SliceIterator lazily walks consecutive byte ranges of length chunk
// over a file of the given total size, yielding a ReadOnlySliceStore per
// call to Next. It is how FileBucketStore.Split exposes its "lazy
// sequence of read-only slice stores" (SPEC_FULL.md §4.1).
type SliceIterator struct {
	path      string
	chunk     int64
	totalSize int64
	pos       int64
}

// Next returns the next slice and true, or (nil, false) once the file
// has been fully covered.
func (it *SliceIterator) Next() (*ReadOnlySliceStore, bool) {
	if it.pos >= it.totalSize {
		return nil, false
	}
	length := it.chunk
	if it.pos+length > it.totalSize {
		length = it.totalSize - it.pos
	}
	s := NewReadOnlySliceStore(it.path, it.pos, length)
	it.pos += length
	return s, true
}
