package store

import (
	"os"
	"sync"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// filePool hands out reusable *os.File handles for positional I/O
// against a single path, and supports pinning a handle resident across
// a LockOpen/Release scope. The pool never holds more than
// maxPooledHandles idle handles; surplus releases are closed instead of
// queued.
const maxPooledHandles = 4

type filePool struct {
	mu     sync.Mutex
	path   string
	flag   int
	perm   os.FileMode
	free   []*os.File
	pinned *os.File
	pins   int
}

func newFilePool(path string, flag int, perm os.FileMode) *filePool {
	return &filePool{path: path, flag: flag, perm: perm}
}

func (p *filePool) acquire() (*os.File, error) {
	p.mu.Lock()
	if p.pinned != nil {
		f := p.pinned
		p.mu.Unlock()
		return f, nil
	}
	if n := len(p.free); n > 0 {
		f := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return f, nil
	}
	p.mu.Unlock()
	return os.OpenFile(p.path, p.flag, p.perm)
}

func (p *filePool) release(f *os.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pinned == f {
		return
	}
	if len(p.free) >= maxPooledHandles {
		f.Close()
		return
	}
	p.free = append(p.free, f)
}

// pin opens (or reuses) a dedicated handle and keeps it resident until
// every matching unpin has run.
func (p *filePool) pin() (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pinned != nil {
		p.pins++
		return p.pinned, nil
	}
	f, err := os.OpenFile(p.path, p.flag, p.perm)
	if err != nil {
		return nil, err
	}
	p.pinned = f
	p.pins = 1
	return f, nil
}

func (p *filePool) unpin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pinned == nil {
		return
	}
	p.pins--
	if p.pins <= 0 {
		p.pinned.Close()
		p.pinned = nil
		p.pins = 0
	}
}

func (p *filePool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.free {
		f.Close()
	}
	p.free = nil
	if p.pinned != nil {
		p.pinned.Close()
		p.pinned = nil
		p.pins = 0
	}
}

// FileStore is a fixed-size, pooled-file-descriptor RAB. Size is fixed
// at construction; Pread/Pwrite enforce bounds and the read-only latch.
type FileStore struct {
	pool     *filePool
	size     int64
	readOnly bool
	disposed bool
	mu       sync.Mutex
}

var _ ioface.RAB = (*FileStore)(nil)

// NewFileStore opens path for read/write positional I/O and returns a
// FileStore fixed at size bytes. The file is created if it does not
// exist and truncated/extended to size.
func NewFileStore(path string, size int64) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "NewFileStore", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, ioerr.Wrap(ioerr.IO, "NewFileStore", err)
	}
	f.Close()

	return &FileStore{
		pool: newFilePool(path, os.O_RDWR, 0600),
		size: size,
	}, nil
}

func (s *FileStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *FileStore) checkBounds(offset int64, n int) error {
	if offset < 0 || offset+int64(n) > s.size {
		return ioerr.New(ioerr.OutOfBounds, "FileStore")
	}
	return nil
}

func (s *FileStore) Pread(offset int64, buf []byte) error {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return ioerr.New(ioerr.Disposed, "FileStore.Pread")
	}
	if err := s.checkBounds(offset, len(buf)); err != nil {
		return err
	}
	f, err := s.pool.acquire()
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "FileStore.Pread", err)
	}
	defer s.pool.release(f)

	if _, err := f.ReadAt(buf, offset); err != nil {
		return ioerr.Wrap(ioerr.IO, "FileStore.Pread", err)
	}
	return nil
}

func (s *FileStore) Pwrite(offset int64, buf []byte) error {
	s.mu.Lock()
	disposed := s.disposed
	readOnly := s.readOnly
	s.mu.Unlock()
	if disposed {
		return ioerr.New(ioerr.Disposed, "FileStore.Pwrite")
	}
	if readOnly {
		return ioerr.New(ioerr.ReadOnly, "FileStore.Pwrite")
	}
	if err := s.checkBounds(offset, len(buf)); err != nil {
		return err
	}
	f, err := s.pool.acquire()
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "FileStore.Pwrite", err)
	}
	defer s.pool.release(f)

	if _, err := f.WriteAt(buf, offset); err != nil {
		return ioerr.Wrap(ioerr.IO, "FileStore.Pwrite", err)
	}
	return nil
}

type fileLock struct{ pool *filePool }

func (l *fileLock) Release() { l.pool.unpin() }

func (s *FileStore) LockOpen() (ioface.Lock, error) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return nil, ioerr.New(ioerr.Disposed, "FileStore.LockOpen")
	}
	if _, err := s.pool.pin(); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "FileStore.LockOpen", err)
	}
	return &fileLock{pool: s.pool}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	s.pool.closeAll()
	return nil
}

func (s *FileStore) IsReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// SetReadOnly latches the store read-only. Used when the owning bucket
// was marked read-only (SPEC_FULL.md §4.1).
func (s *FileStore) SetReadOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = true
}

// Path returns the backing file's path.
func (s *FileStore) Path() string { return s.pool.path }
