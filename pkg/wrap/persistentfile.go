package wrap

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/store"
)

// filenameIDSeq mints the 64-bit filename-id field of the persistent-
// temp-file record (SPEC_FULL.md §6). The source used a numeric
// filename-id minted by the filename generator; this module names files
// with FilenameGenerator-produced strings instead, so the id here is a
// process-local sequence purely for wire-format compatibility — it
// carries no naming authority of its own.
var filenameIDSeq uint64

// PersistentTempFileBucket is the temp-file-bucket record of
// SPEC_FULL.md §6: a base-file (pkg/store.FileBucketStore) plus the
// bookkeeping a persistent-temp manager needs to recognize and reap its
// own files across a restart — a numeric id, a read-only latch, and
// whether this file should be unlinked on dispose or is merely borrowed.
type PersistentTempFileBucket struct {
	Inner           *store.FileBucketStore
	Path            string
	FilenameID      uint64
	DeleteOnDispose bool
}

var _ ioface.Bucket = (*PersistentTempFileBucket)(nil)

// NewPersistentTempFileBucket wraps a freshly created base-file store,
// minting a new filename-id.
func NewPersistentTempFileBucket(inner *store.FileBucketStore, path string, deleteOnDispose bool) *PersistentTempFileBucket {
	return &PersistentTempFileBucket{
		Inner:           inner,
		Path:            path,
		FilenameID:      atomic.AddUint64(&filenameIDSeq, 1),
		DeleteOnDispose: deleteOnDispose,
	}
}

func (b *PersistentTempFileBucket) OpenWriter() (ioface.Writer, error) { return b.Inner.OpenWriter() }
func (b *PersistentTempFileBucket) OpenReader() (ioface.Reader, error) { return b.Inner.OpenReader() }
func (b *PersistentTempFileBucket) Size() int64                        { return b.Inner.Size() }
func (b *PersistentTempFileBucket) IsReadOnly() bool                   { return b.Inner.IsReadOnly() }
func (b *PersistentTempFileBucket) SetReadOnly()                       { b.Inner.SetReadOnly() }
func (b *PersistentTempFileBucket) Close() error                       { return b.Inner.Close() }

func (b *PersistentTempFileBucket) CreateShadow() (ioface.Bucket, error) {
	return b.Inner.CreateShadow()
}

// Dispose unlinks the backing file only when DeleteOnDispose is set —
// a borrowed (registered, not owned) persistent temp must survive.
func (b *PersistentTempFileBucket) Dispose() error {
	if !b.DeleteOnDispose {
		return nil
	}
	return b.Inner.Dispose()
}

// Serialize writes the temp-file-bucket record (SPEC_FULL.md §6):
// magic, version, filename-id, read-only flag, delete-on-dispose flag,
// length-prefixed filename, then the nested base-file record.
func (b *PersistentTempFileBucket) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicPersistentTempFile); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, b.FilenameID); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	var roFlag, delFlag byte
	if b.IsReadOnly() {
		roFlag = 1
	}
	if b.DeleteOnDispose {
		delFlag = 1
	}
	if err := bw.WriteByte(roFlag); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	if err := bw.WriteByte(delFlag); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(len(b.Path))); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	if _, err := bw.WriteString(b.Path); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	if err := bw.Flush(); err != nil {
		return ioerr.Wrap(ioerr.IO, "PersistentTempFileBucket.Serialize", err)
	}
	return SerializeBaseFile(w, b.Inner)
}

// DeserializePersistentTempFileBucket reads the record written by
// Serialize and reopens the named file via DeserializeBaseFile. Fails
// with ioerr.StorageFormat on a magic/version mismatch, or
// ioerr.ResumeFailed if the named file no longer exists.
func DeserializePersistentTempFileBucket(r io.Reader) (*PersistentTempFileBucket, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	if magic != MagicPersistentTempFile {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializePersistentTempFileBucket")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializePersistentTempFileBucket")
	}
	var filenameID uint64
	if err := binary.Read(r, binary.BigEndian, &filenameID); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	br := bufio.NewReader(r)
	roFlag, err := br.ReadByte()
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	delFlag, err := br.ReadByte()
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	var pathLen uint32
	if err := binary.Read(br, binary.BigEndian, &pathLen); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	pathBuf := make([]byte, pathLen)
	if _, err := io.ReadFull(br, pathBuf); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializePersistentTempFileBucket", err)
	}
	path := string(pathBuf)

	inner, err := DeserializeBaseFile(br, path)
	if err != nil {
		return nil, err
	}
	if roFlag == 1 {
		inner.SetReadOnly()
	}

	return &PersistentTempFileBucket{
		Inner:           inner,
		Path:            path,
		FilenameID:      filenameID,
		DeleteOnDispose: delFlag == 1,
	}, nil
}
