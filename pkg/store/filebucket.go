package store

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// FileBucketStore is a disk-backed, stream-oriented Bucket. A writer
// session accumulates bytes into a sibling temp file and commits them
// atomically (rename) on Close, so a reader never observes a partial
// write. Only one writer may be open at a time, and a writer may not be
// opened while readers are outstanding.
type FileBucketStore struct {
	mu         sync.Mutex
	path       string
	tmpPath    string
	size       int64
	readOnly   bool
	disposed   bool
	written    bool
	writerOpen bool
	readers    int
	// tempExists selects SPEC_FULL.md §4.1's "temp already exists" mode:
	// the writer opens path directly instead of writing to a sibling
	// temp file and renaming on close.
	tempExists bool
}

var _ ioface.Bucket = (*FileBucketStore)(nil)

// NewFileBucketStore returns an empty bucket that will materialize at
// path once a writer session commits, via write-to-temp-then-rename.
func NewFileBucketStore(path string) *FileBucketStore {
	return &FileBucketStore{path: path, tmpPath: path + ".tmp"}
}

// NewFileBucketStoreTempExists returns a bucket configured for
// SPEC_FULL.md §4.1's "temp already exists" mode: the writer session
// opens path directly rather than writing to a sibling temp path and
// renaming on close. Used when the caller has already reserved path as
// a temp file and wants writes to land there with no extra rename.
func NewFileBucketStoreTempExists(path string) *FileBucketStore {
	return &FileBucketStore{path: path, tmpPath: path, tempExists: true}
}

// ResumeFileBucketStore reconstructs a FileBucketStore over a path whose
// file is already known to be fully written on disk, sized size bytes,
// as part of deserializing a base-file record (SPEC_FULL.md §6). Used
// on resume; never by the ordinary create path.
func ResumeFileBucketStore(path string, size int64, readOnly bool) *FileBucketStore {
	return &FileBucketStore{
		path:     path,
		tmpPath:  path + ".tmp",
		size:     size,
		written:  true,
		readOnly: readOnly,
	}
}

// Written reports whether a writer session has ever committed, i.e. the
// "closed" flag of the base-file serialization record (SPEC_FULL.md §6).
func (s *FileBucketStore) Written() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

type fileBucketWriter struct {
	store *FileBucketStore
	f     *os.File
	size  int64
	done  bool
}

func (w *fileBucketWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ioerr.New(ioerr.Closed, "FileBucketStore.Writer.Write")
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, ioerr.Wrap(ioerr.IO, "FileBucketStore.Writer.Write", err)
	}
	return n, nil
}

func (w *fileBucketWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.f.Close(); err != nil {
		return ioerr.Wrap(ioerr.IO, "FileBucketStore.Writer.Close", err)
	}
	if !w.store.tempExists {
		if err := os.Rename(w.store.tmpPath, w.store.path); err != nil {
			return ioerr.Wrap(ioerr.IO, "FileBucketStore.Writer.Close", err)
		}
	}

	w.store.mu.Lock()
	w.store.size = w.size
	w.store.written = true
	w.store.writerOpen = false
	w.store.mu.Unlock()
	return nil
}

// OpenWriter implements ioface.Bucket. It fails with ioerr.AlreadyOpen
// if a writer session is already active, and ioerr.ConcurrentReaders if
// readers are currently outstanding (SPEC_FULL.md §4.1: a writer never
// invalidates a reader mid-read).
func (s *FileBucketStore) OpenWriter() (ioface.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "FileBucketStore.OpenWriter")
	}
	if s.readOnly {
		return nil, ioerr.New(ioerr.ReadOnly, "FileBucketStore.OpenWriter")
	}
	if s.writerOpen {
		return nil, ioerr.New(ioerr.AlreadyOpen, "FileBucketStore.OpenWriter")
	}
	if s.readers > 0 {
		return nil, ioerr.New(ioerr.ConcurrentReaders, "FileBucketStore.OpenWriter")
	}

	f, err := os.OpenFile(s.tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "FileBucketStore.OpenWriter", err)
	}
	s.writerOpen = true
	return &fileBucketWriter{store: s, f: f}, nil
}

type fileBucketReader struct {
	store *FileBucketStore
	f     *os.File
}

func (r *fileBucketReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, ioerr.Wrap(ioerr.IO, "FileBucketStore.Reader.Read", err)
	}
	return n, err
}

func (r *fileBucketReader) Close() error {
	err := r.f.Close()
	r.store.mu.Lock()
	if r.store.readers > 0 {
		r.store.readers--
	}
	r.store.mu.Unlock()
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "FileBucketStore.Reader.Close", err)
	}
	return nil
}

// OpenReader implements ioface.Bucket. It fails with ioerr.NotWrittenYet
// if no writer has ever committed, and ioerr.ConcurrentWriter if a
// writer session is presently open.
func (s *FileBucketStore) OpenReader() (ioface.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "FileBucketStore.OpenReader")
	}
	if s.writerOpen {
		return nil, ioerr.New(ioerr.ConcurrentWriter, "FileBucketStore.OpenReader")
	}
	if !s.written {
		return nil, ioerr.New(ioerr.NotWrittenYet, "FileBucketStore.OpenReader")
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "FileBucketStore.OpenReader", err)
	}
	s.readers++
	return &fileBucketReader{store: s, f: f}, nil
}

func (s *FileBucketStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *FileBucketStore) IsReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

func (s *FileBucketStore) SetReadOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = true
}

func (s *FileBucketStore) Close() error { return nil }

// Dispose removes the backing file. Idempotent.
func (s *FileBucketStore) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	if s.written {
		os.Remove(s.path)
	}
	os.Remove(s.tmpPath)
	return nil
}

// CreateShadow implements ioface.Bucket by returning a read-only slice
// view spanning the whole committed file, avoiding a second on-disk
// copy (SPEC_FULL.md §4.1).
func (s *FileBucketStore) CreateShadow() (ioface.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "FileBucketStore.CreateShadow")
	}
	if !s.written {
		return nil, ioerr.New(ioerr.NotWrittenYet, "FileBucketStore.CreateShadow")
	}
	return NewReadOnlySliceStore(s.path, 0, s.size), nil
}

// Split returns a lazy iterator over consecutive chunk-byte slices of
// the committed file, per SPEC_FULL.md §4.1.
func (s *FileBucketStore) Split(chunk int64) (*SliceIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "FileBucketStore.Split")
	}
	if !s.written {
		return nil, ioerr.New(ioerr.NotWrittenYet, "FileBucketStore.Split")
	}
	return &SliceIterator{path: s.path, chunk: chunk, totalSize: s.size}, nil
}

// Path returns the backing file's committed path.
func (s *FileBucketStore) Path() string { return s.path }

// ToRandomAccess implements ioface.RandomAccessBucket: it refuses while
// a writer or any reader is open, then returns a positional RAB over
// the same committed file.
func (s *FileBucketStore) ToRandomAccess() (ioface.RAB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ioerr.New(ioerr.Disposed, "FileBucketStore.ToRandomAccess")
	}
	if s.writerOpen {
		return nil, ioerr.New(ioerr.ConcurrentWriter, "FileBucketStore.ToRandomAccess")
	}
	if s.readers > 0 {
		return nil, ioerr.New(ioerr.ConcurrentReaders, "FileBucketStore.ToRandomAccess")
	}
	if !s.written {
		return nil, ioerr.New(ioerr.NotWrittenYet, "FileBucketStore.ToRandomAccess")
	}

	fs, err := NewFileStore(s.path, s.size)
	if err != nil {
		return nil, err
	}
	if s.readOnly {
		fs.SetReadOnly()
	}
	s.readOnly = true
	return fs, nil
}

var _ ioface.RandomAccessBucket = (*FileBucketStore)(nil)
