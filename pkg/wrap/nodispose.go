package wrap

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// NoDisposeBucket forwards every operation except Dispose, which is a
// no-op. Used when the inner bucket's lifetime is owned elsewhere
// (SPEC_FULL.md §4.9).
type NoDisposeBucket struct {
	Inner ioface.Bucket
}

var _ ioface.Bucket = (*NoDisposeBucket)(nil)

func NewNoDisposeBucket(inner ioface.Bucket) *NoDisposeBucket {
	return &NoDisposeBucket{Inner: inner}
}

func (b *NoDisposeBucket) OpenWriter() (ioface.Writer, error) { return b.Inner.OpenWriter() }
func (b *NoDisposeBucket) OpenReader() (ioface.Reader, error) { return b.Inner.OpenReader() }
func (b *NoDisposeBucket) Size() int64                        { return b.Inner.Size() }
func (b *NoDisposeBucket) IsReadOnly() bool                   { return b.Inner.IsReadOnly() }
func (b *NoDisposeBucket) SetReadOnly()                       { b.Inner.SetReadOnly() }
func (b *NoDisposeBucket) Close() error                       { return b.Inner.Close() }

// Dispose is a deliberate no-op: the inner bucket's disposal is owned
// by whoever constructed this wrapper.
func (b *NoDisposeBucket) Dispose() error { return nil }

func (b *NoDisposeBucket) CreateShadow() (ioface.Bucket, error) { return b.Inner.CreateShadow() }

// Serialize writes the no-dispose record (SPEC_FULL.md §6): magic,
// version, then the inner container's serialized form. The wrapper
// itself carries no state of its own beyond "don't forward dispose".
func (b *NoDisposeBucket) Serialize(w io.Writer, innerSerialize func(io.Writer) error) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicNoDispose); err != nil {
		return ioerr.Wrap(ioerr.IO, "NoDisposeBucket.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "NoDisposeBucket.Serialize", err)
	}
	if err := bw.Flush(); err != nil {
		return ioerr.Wrap(ioerr.IO, "NoDisposeBucket.Serialize", err)
	}
	return innerSerialize(w)
}

// DeserializeNoDisposeBucket reads the record written by Serialize and
// rewraps the recursively deserialized inner container.
func DeserializeNoDisposeBucket(r io.Reader, innerDeserialize func(io.Reader) (ioface.Bucket, error)) (*NoDisposeBucket, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeNoDisposeBucket", err)
	}
	if magic != MagicNoDispose {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeNoDisposeBucket")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeNoDisposeBucket", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeNoDisposeBucket")
	}
	inner, err := innerDeserialize(r)
	if err != nil {
		return nil, err
	}
	return NewNoDisposeBucket(inner), nil
}

// NoDisposeRAB is the RAB analogue of NoDisposeBucket.
type NoDisposeRAB struct {
	Inner ioface.RAB
}

var _ ioface.RAB = (*NoDisposeRAB)(nil)

func NewNoDisposeRAB(inner ioface.RAB) *NoDisposeRAB {
	return &NoDisposeRAB{Inner: inner}
}

func (r *NoDisposeRAB) Size() int64                           { return r.Inner.Size() }
func (r *NoDisposeRAB) Pread(offset int64, buf []byte) error  { return r.Inner.Pread(offset, buf) }
func (r *NoDisposeRAB) Pwrite(offset int64, buf []byte) error { return r.Inner.Pwrite(offset, buf) }
func (r *NoDisposeRAB) LockOpen() (ioface.Lock, error)        { return r.Inner.LockOpen() }
func (r *NoDisposeRAB) Close() error                          { return r.Inner.Close() }
func (r *NoDisposeRAB) Dispose() error                        { return nil }
func (r *NoDisposeRAB) IsReadOnly() bool                      { return r.Inner.IsReadOnly() }

// Serialize writes the no-dispose record for a RAB inner, analogous to
// NoDisposeBucket.Serialize.
func (r *NoDisposeRAB) Serialize(w io.Writer, innerSerialize func(io.Writer) error) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicNoDispose); err != nil {
		return ioerr.Wrap(ioerr.IO, "NoDisposeRAB.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "NoDisposeRAB.Serialize", err)
	}
	if err := bw.Flush(); err != nil {
		return ioerr.Wrap(ioerr.IO, "NoDisposeRAB.Serialize", err)
	}
	return innerSerialize(w)
}

// DeserializeNoDisposeRAB is the RAB analogue of
// DeserializeNoDisposeBucket.
func DeserializeNoDisposeRAB(r io.Reader, innerDeserialize func(io.Reader) (ioface.RAB, error)) (*NoDisposeRAB, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeNoDisposeRAB", err)
	}
	if magic != MagicNoDispose {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeNoDisposeRAB")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeNoDisposeRAB", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeNoDisposeRAB")
	}
	inner, err := innerDeserialize(r)
	if err != nil {
		return nil, err
	}
	return NewNoDisposeRAB(inner), nil
}
