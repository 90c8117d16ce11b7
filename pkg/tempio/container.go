package tempio

import (
	"sync"
	"time"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/hyphanet/support/pkg/store"
)

// checkDiskEvery is the write-byte interval at which a disk-backed
// writer re-verifies free space (SPEC_FULL.md §4.4: CHECK_DISK_EVERY).
const checkDiskEvery = 4096

// FileFactory builds a fresh, empty disk-backed bucket store sized for
// an eventual migration target. The container does not know the path
// scheme; that is pkg/factory's concern.
type FileFactory func() (*store.FileBucketStore, error)

// DiskUsableFunc reports the currently usable bytes on the filesystem
// backing a container's disk store.
type DiskUsableFunc func() (int64, error)

// Config parameterizes a TempBucket per SPEC_FULL.md §4.4.
type Config struct {
	MaxSingleRAM int64
	RAMPoolSize  int64
	MinDiskSpace int64
	FileFactory  FileFactory
	DiskUsable   DiskUsableFunc
	Tracker      *ramtracker.Tracker
	Now          func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// TempBucket is the switchable RAM/disk proxy described in
// SPEC_FULL.md §4.4. It is safe for concurrent use; all state
// transitions run under a single mutex.
type TempBucket struct {
	mu sync.Mutex

	cfg Config

	currentSize      int64
	writerGeneration uint64
	writerOpen       bool
	underlyingWriter ioface.Writer

	readers map[*tempReader]struct{}

	ramBacked bool
	mem       *store.MemoryStore
	disk      *store.FileBucketStore

	readOnly bool
	disposed bool

	bytesSinceDiskCheck int64

	handle *ramtracker.Handle

	// convertedOwner is non-nil once ToRandomAccess has succeeded; it
	// arbitrates the single disposal of the shared disk store between
	// this container and the returned TempRAB.
	convertedOwner *sharedOwner
}

var _ ioface.Bucket = (*TempBucket)(nil)
var _ ioface.RandomAccessBucket = (*TempBucket)(nil)

// NewRAMBacked returns a TempBucket that starts RAM-backed and enqueues
// a zero-size handle with cfg.Tracker. Callers are expected to have
// already run the RAM-capability gate (SPEC_FULL.md §4.5) before
// calling this. No bytes are reserved here: the tracker is charged
// through Take as bytes are written.
func NewRAMBacked(cfg Config) *TempBucket {
	h := ramtracker.NewHandle(0, cfg.now())
	cfg.Tracker.Enqueue(h)
	c := &TempBucket{
		cfg:       cfg,
		readers:   make(map[*tempReader]struct{}),
		ramBacked: true,
		mem:       store.NewMemoryStore(),
		handle:    h,
	}
	h.SetMigratable(c)
	return c
}

// NewDiskBacked returns a TempBucket that starts disk-backed, for
// containers that failed the RAM-capability gate at creation time.
func NewDiskBacked(cfg Config) (*TempBucket, error) {
	disk, err := cfg.FileFactory()
	if err != nil {
		return nil, err
	}
	return &TempBucket{
		cfg:     cfg,
		readers: make(map[*tempReader]struct{}),
		disk:    disk,
	}, nil
}

// OpenWriter implements ioface.Bucket.
func (c *TempBucket) OpenWriter() (ioface.Writer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ioerr.New(ioerr.Disposed, "TempBucket.OpenWriter")
	}
	if c.readOnly {
		return nil, ioerr.New(ioerr.ReadOnly, "TempBucket.OpenWriter")
	}
	if c.writerOpen {
		return nil, ioerr.New(ioerr.AlreadyOpen, "TempBucket.OpenWriter")
	}

	var uw ioface.Writer
	var err error
	if c.ramBacked {
		uw, err = c.mem.OpenWriter()
	} else {
		uw, err = c.disk.OpenWriter()
	}
	if err != nil {
		return nil, err
	}

	c.underlyingWriter = uw
	c.writerOpen = true
	c.writerGeneration++
	return &tempWriter{container: c}, nil
}

// writeLocked runs the writer semantics of SPEC_FULL.md §4.4 steps 1-4.
// Must be called with c.mu held.
func (c *TempBucket) writeLocked(p []byte) (int, error) {
	if c.disposed {
		return 0, ioerr.New(ioerr.Disposed, "TempBucket.Write")
	}

	n := int64(len(p))
	future := c.currentSize + n

	if c.ramBacked {
		oversized := future >= c.cfg.MaxSingleRAM
		poolPressure := (future - c.currentSize + int64(c.cfg.Tracker.RAMInUse())) >= c.cfg.RAMPoolSize
		if oversized || poolPressure {
			if err := c.migrateToDiskLocked(); err != nil {
				return 0, err
			}
		}
	}

	if !c.ramBacked && c.cfg.DiskUsable != nil {
		c.bytesSinceDiskCheck += n
		if c.bytesSinceDiskCheck >= checkDiskEvery {
			usable, err := c.cfg.DiskUsable()
			if err == nil && usable-n < c.cfg.MinDiskSpace {
				return 0, ioerr.New(ioerr.InsufficientDiskSpace, "TempBucket.Write")
			}
			c.bytesSinceDiskCheck = 0
		}
	}

	written, err := c.underlyingWriter.Write(p)
	c.currentSize += int64(written)
	if c.ramBacked {
		c.cfg.Tracker.Take(uint64(written))
	}
	if err != nil {
		return written, ioerr.Wrap(ioerr.IO, "TempBucket.Write", err)
	}
	return written, nil
}

func (c *TempBucket) closeWriterLocked() error {
	if !c.writerOpen {
		return nil
	}
	err := c.underlyingWriter.Close()
	c.underlyingWriter = nil
	c.writerOpen = false
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "TempBucket.Writer.Close", err)
	}
	return nil
}

// OpenReader implements ioface.Bucket.
func (c *TempBucket) OpenReader() (ioface.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ioerr.New(ioerr.Disposed, "TempBucket.OpenReader")
	}

	var underlying ioface.Reader
	var err error
	if c.ramBacked {
		underlying, err = c.mem.OpenReader()
	} else {
		underlying, err = c.disk.OpenReader()
	}
	if err != nil {
		return nil, err
	}

	r := &tempReader{container: c, generation: c.writerGeneration, underlying: underlying}
	c.readers[r] = struct{}{}
	return r, nil
}

// Size implements ioface.Bucket.
func (c *TempBucket) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// IsReadOnly implements ioface.Bucket.
func (c *TempBucket) IsReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly
}

// SetReadOnly implements ioface.Bucket.
func (c *TempBucket) SetReadOnly() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readOnly = true
	if c.ramBacked {
		c.mem.SetReadOnly()
	} else if c.disk != nil {
		c.disk.SetReadOnly()
	}
}

// Close implements ioface.Bucket. Idempotent, releases reader/writer
// handles but keeps the underlying data.
func (c *TempBucket) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeWriterLocked()
}

// Dispose implements ioface.Bucket. Idempotent.
func (c *TempBucket) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil
	}
	c.disposed = true

	for r := range c.readers {
		r.detachLocked()
	}
	c.readers = nil

	if c.writerOpen {
		c.underlyingWriter.Close()
		c.underlyingWriter = nil
		c.writerOpen = false
	}

	if c.convertedOwner != nil {
		c.convertedOwner.disposeBucket()
		return nil
	}

	if c.ramBacked {
		if c.handle != nil {
			c.cfg.Tracker.Remove(c.handle)
			c.cfg.Tracker.Free(uint64(c.currentSize))
			c.handle = nil
		}
		c.mem.Dispose()
	} else {
		c.disk.Dispose()
	}
	return nil
}

// CreateShadow implements ioface.Bucket.
func (c *TempBucket) CreateShadow() (ioface.Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ioerr.New(ioerr.Disposed, "TempBucket.CreateShadow")
	}
	if c.ramBacked {
		return c.mem.CreateShadow()
	}
	return c.disk.CreateShadow()
}

// Migrate forces this container to disk if it is still RAM-backed,
// taking the container lock itself. It is the entry point the
// migration cleaner drives through ramtracker.Handle.Migrate.
func (c *TempBucket) Migrate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.migrateToDiskLocked()
}

// migrateToDiskLocked runs the 8-step migration algorithm of
// SPEC_FULL.md §4.4. Must be called with c.mu held; returns nil (no-op)
// if the container is not currently RAM-backed or is disposed.
func (c *TempBucket) migrateToDiskLocked() error {
	if !c.ramBacked || c.disposed {
		return nil
	}

	disk, err := c.cfg.FileFactory()
	if err != nil {
		return ioerr.Wrap(ioerr.IO, "TempBucket.migrate_to_disk", err)
	}

	if c.writerOpen {
		if err := c.underlyingWriter.Close(); err != nil {
			return ioerr.Wrap(ioerr.IO, "TempBucket.migrate_to_disk", err)
		}
		data := c.mem.Bytes()
		w, err := disk.OpenWriter()
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		c.underlyingWriter = w
	} else {
		data := c.mem.Bytes()
		w, err := disk.OpenWriter()
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}

	if c.mem.IsReadOnly() {
		disk.SetReadOnly()
	}

	c.notifyReadersLocked(disk)

	oldMem := c.mem
	c.mem = nil
	c.disk = disk
	c.ramBacked = false

	if c.handle != nil {
		c.cfg.Tracker.Remove(c.handle)
		c.cfg.Tracker.Free(uint64(c.currentSize))
		c.handle = nil
	}

	oldMem.Dispose()
	return nil
}

// notifyReadersLocked implements SPEC_FULL.md §4.4's reader-notification
// pass: a reader whose generation matches the container's current
// writer_generation is rebound to the new store and re-seeked; any
// other reader is detached. Must be called with c.mu held.
func (c *TempBucket) notifyReadersLocked(disk *store.FileBucketStore) {
	for r := range c.readers {
		if r.generation != c.writerGeneration {
			r.detachLocked()
			delete(c.readers, r)
			continue
		}
		r.underlying.Close()
		newReader, err := disk.OpenReader()
		if err != nil {
			r.detachLocked()
			delete(c.readers, r)
			continue
		}
		if err := skipBytes(newReader, r.pos); err != nil {
			newReader.Close()
			r.detachLocked()
			delete(c.readers, r)
			continue
		}
		r.underlying = newReader
	}
}

// ToRandomAccess implements ioface.RandomAccessBucket. It forces a
// migration to disk if still RAM-backed, then hands ownership of the
// disk file to a TempRAB that disposes it jointly with this container.
func (c *TempBucket) ToRandomAccess() (ioface.RAB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ioerr.New(ioerr.Disposed, "TempBucket.ToRandomAccess")
	}
	if c.writerOpen {
		return nil, ioerr.New(ioerr.ConcurrentWriter, "TempBucket.ToRandomAccess")
	}
	if len(c.readers) > 0 {
		return nil, ioerr.New(ioerr.ConcurrentReaders, "TempBucket.ToRandomAccess")
	}

	if c.ramBacked {
		if err := c.migrateToDiskLocked(); err != nil {
			return nil, err
		}
	}

	c.readOnly = true
	rab, err := c.disk.ToRandomAccess()
	if err != nil {
		return nil, err
	}

	owner := &sharedOwner{disk: c.disk}
	c.convertedOwner = owner

	return &TempRAB{underlying: rab, size: rab.Size(), owner: owner}, nil
}

// sharedOwner arbitrates disposal of a disk bucket store shared between
// a converted TempBucket and the TempRAB it produced: either side may
// be disposed first and must survive independently, with the file
// freed exactly once, when the second side disposes (SPEC_FULL.md §4.4
// / §9, invariant 9). Mirrors pkg/shareread's closed/refcount-gated
// maybeDisposeLocked pattern rather than a sync.Once, since a
// first-caller-wins Once would free the file out from under whichever
// side disposes second.
type sharedOwner struct {
	mu           sync.Mutex
	disk         *store.FileBucketStore
	bucketClosed bool
	rabClosed    bool
	disposed     bool
}

// disposeBucket is called by the converted TempBucket's Dispose.
func (o *sharedOwner) disposeBucket() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bucketClosed = true
	o.maybeDisposeLocked()
}

// disposeRAB is called by the spun-off TempRAB's Dispose.
func (o *sharedOwner) disposeRAB() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rabClosed = true
	o.maybeDisposeLocked()
}

func (o *sharedOwner) maybeDisposeLocked() {
	if o.bucketClosed && o.rabClosed && !o.disposed {
		o.disposed = true
		o.disk.Dispose()
	}
}
