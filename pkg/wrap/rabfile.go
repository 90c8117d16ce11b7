package wrap

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/store"
)

// RABOverFile unifies positional I/O over a plain file path, per
// SPEC_FULL.md §4.9. It is a thin, serializable wrapper around
// pkg/store.FileStore: the leaf primitive already implements pooled,
// lock-pinning positional I/O, so this type only adds the on-disk
// header (magic, version, size, read-only flag, path) described in
// SPEC_FULL.md §6 for MagicRABBucket.
type RABOverFile struct {
	*store.FileStore
	path string
}

var _ ioface.RAB = (*RABOverFile)(nil)

// NewRABOverFile opens path as a fixed-size RAB of size bytes.
func NewRABOverFile(path string, size int64) (*RABOverFile, error) {
	fs, err := store.NewFileStore(path, size)
	if err != nil {
		return nil, err
	}
	return &RABOverFile{FileStore: fs, path: path}, nil
}

// Serialize writes the on-disk header for a RAB-over-file wrapper:
// magic, version, 64-bit size, 1-byte read-only flag, length-prefixed
// path (SPEC_FULL.md §6).
func (r *RABOverFile) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicRABBucket); err != nil {
		return ioerr.Wrap(ioerr.IO, "RABOverFile.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "RABOverFile.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, uint64(r.Size())); err != nil {
		return ioerr.Wrap(ioerr.IO, "RABOverFile.Serialize", err)
	}
	var roFlag byte
	if r.IsReadOnly() {
		roFlag = 1
	}
	if err := bw.WriteByte(roFlag); err != nil {
		return ioerr.Wrap(ioerr.IO, "RABOverFile.Serialize", err)
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(len(r.path))); err != nil {
		return ioerr.Wrap(ioerr.IO, "RABOverFile.Serialize", err)
	}
	if _, err := bw.WriteString(r.path); err != nil {
		return ioerr.Wrap(ioerr.IO, "RABOverFile.Serialize", err)
	}
	return bw.Flush()
}

// DeserializeRABOverFile reads the header written by Serialize and
// reopens the file it names. It fails with ioerr.StorageFormat on a
// magic or version mismatch.
func DeserializeRABOverFile(r io.Reader) (*RABOverFile, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeRABOverFile", err)
	}
	if magic != MagicRABBucket {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeRABOverFile")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeRABOverFile", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeRABOverFile")
	}
	var size uint64
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeRABOverFile", err)
	}
	br := bufio.NewReader(r)
	roFlag, err := br.ReadByte()
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeRABOverFile", err)
	}
	var pathLen uint32
	if err := binary.Read(br, binary.BigEndian, &pathLen); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeRABOverFile", err)
	}
	pathBuf := make([]byte, pathLen)
	if _, err := io.ReadFull(br, pathBuf); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeRABOverFile", err)
	}

	rf, err := NewRABOverFile(string(pathBuf), int64(size))
	if err != nil {
		return nil, ioerr.Wrap(ioerr.ResumeFailed, "DeserializeRABOverFile", err)
	}
	if roFlag == 1 {
		rf.SetReadOnly()
	}
	return rf, nil
}
