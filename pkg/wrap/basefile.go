package wrap

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/store"
)

// SerializeBaseFile writes the base-file record (SPEC_FULL.md §6): magic,
// version, 1-byte closed flag. The path itself is not part of this
// record — it is carried by whichever outer wrapper (persistent-temp-
// file, RAB-over-file) knows how to name the file on disk.
func SerializeBaseFile(w io.Writer, s *store.FileBucketStore) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, MagicBaseFile); err != nil {
		return ioerr.Wrap(ioerr.IO, "SerializeBaseFile", err)
	}
	if err := binary.Write(bw, binary.BigEndian, serializationVersion); err != nil {
		return ioerr.Wrap(ioerr.IO, "SerializeBaseFile", err)
	}
	var closedFlag byte
	if s.Written() {
		closedFlag = 1
	}
	if err := bw.WriteByte(closedFlag); err != nil {
		return ioerr.Wrap(ioerr.IO, "SerializeBaseFile", err)
	}
	return bw.Flush()
}

// DeserializeBaseFile reads a base-file record and reconstructs the
// store over path, whose real size is read from the filesystem (the
// base-file record itself carries no size field). The caller must
// already know path from an outer record (persistent-temp-file).
func DeserializeBaseFile(r io.Reader, path string) (*store.FileBucketStore, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeBaseFile", err)
	}
	if magic != MagicBaseFile {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeBaseFile")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeBaseFile", err)
	}
	if version != serializationVersion {
		return nil, ioerr.New(ioerr.StorageFormat, "DeserializeBaseFile")
	}
	br := bufio.NewReader(r)
	closedFlag, err := br.ReadByte()
	if err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "DeserializeBaseFile", err)
	}

	if closedFlag != 1 {
		return store.NewFileBucketStore(path), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.ResumeFailed, "DeserializeBaseFile", err)
	}
	return store.ResumeFileBucketStore(path, info.Size(), false), nil
}
