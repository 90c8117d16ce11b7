package wrap

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// nextPow2 rounds n up to the next power of two, or returns n itself if
// it already is one.
func nextPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// paddedLength is the power-of-two rounding rule this wrapper applies
// on writer close: max(size, MinPadded) rounded up to the next power of
// two.
func paddedLength(size int64) int64 {
	if size < MinPadded {
		size = MinPadded
	}
	return nextPow2(size)
}

// PaddedBucket pads its inner store with random bytes on writer close,
// up to paddedLength(dataLength), so the on-disk size leaks only a
// power-of-two size class rather than the exact payload length
// (SPEC_FULL.md §4.9). Readers see only the data_length prefix.
type PaddedBucket struct {
	mu         sync.Mutex
	Inner      ioface.Bucket
	dataLength int64
	paddedSize int64
	writerOpen bool
	written    bool
}

var _ ioface.Bucket = (*PaddedBucket)(nil)

func NewPaddedBucket(inner ioface.Bucket) *PaddedBucket {
	return &PaddedBucket{Inner: inner}
}

// ResumePaddedBucket reconstructs a PaddedBucket already known to have
// been written, with inner's on-disk size as the physical padded size
// and dataLength as the logical (unpadded) length — used when
// deserializing a padded-ephemerally-encrypted record (SPEC_FULL.md §6).
func ResumePaddedBucket(inner ioface.Bucket, dataLength int64) *PaddedBucket {
	return &PaddedBucket{
		Inner:      inner,
		dataLength: dataLength,
		paddedSize: inner.Size(),
		written:    true,
	}
}

type paddedWriter struct {
	bucket *PaddedBucket
	inner  ioface.Writer
	done   bool
}

func (w *paddedWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	w.bucket.mu.Lock()
	w.bucket.dataLength += int64(n)
	w.bucket.mu.Unlock()
	if err != nil {
		return n, ioerr.Wrap(ioerr.IO, "PaddedBucket.Writer.Write", err)
	}
	return n, nil
}

func (w *paddedWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	w.bucket.mu.Lock()
	target := paddedLength(w.bucket.dataLength)
	padLen := target - w.bucket.dataLength
	w.bucket.mu.Unlock()

	if padLen > 0 {
		padding := make([]byte, padLen)
		if _, err := rand.Read(padding); err != nil {
			return ioerr.Wrap(ioerr.Crypto, "PaddedBucket.Writer.Close", err)
		}
		if _, err := w.inner.Write(padding); err != nil {
			return ioerr.Wrap(ioerr.IO, "PaddedBucket.Writer.Close", err)
		}
	}
	if err := w.inner.Close(); err != nil {
		return ioerr.Wrap(ioerr.IO, "PaddedBucket.Writer.Close", err)
	}

	w.bucket.mu.Lock()
	w.bucket.paddedSize = target
	w.bucket.writerOpen = false
	w.bucket.written = true
	w.bucket.mu.Unlock()
	return nil
}

func (b *PaddedBucket) OpenWriter() (ioface.Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writerOpen {
		return nil, ioerr.New(ioerr.AlreadyOpen, "PaddedBucket.OpenWriter")
	}
	inner, err := b.Inner.OpenWriter()
	if err != nil {
		return nil, err
	}
	b.writerOpen = true
	b.dataLength = 0
	return &paddedWriter{bucket: b, inner: inner}, nil
}

// OpenReader returns a reader truncated to the logical (unpadded) data
// length, per SPEC_FULL.md §4.9.
func (b *PaddedBucket) OpenReader() (ioface.Reader, error) {
	b.mu.Lock()
	if !b.written {
		b.mu.Unlock()
		return nil, ioerr.New(ioerr.NotWrittenYet, "PaddedBucket.OpenReader")
	}
	dataLength := b.dataLength
	b.mu.Unlock()

	inner, err := b.Inner.OpenReader()
	if err != nil {
		return nil, err
	}
	return &limitedReader{inner: inner, remaining: dataLength}, nil
}

type limitedReader struct {
	inner     ioface.Reader
	remaining int64
}

func (r *limitedReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.inner.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *limitedReader) Close() error { return r.inner.Close() }

// Size returns the logical (unpadded) data length.
func (b *PaddedBucket) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataLength
}

// PaddedSize returns the physical, power-of-two on-disk size once a
// writer has closed, or 0 before that.
func (b *PaddedBucket) PaddedSize() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paddedSize
}

func (b *PaddedBucket) IsReadOnly() bool { return b.Inner.IsReadOnly() }
func (b *PaddedBucket) SetReadOnly()     { b.Inner.SetReadOnly() }
func (b *PaddedBucket) Close() error     { return b.Inner.Close() }
func (b *PaddedBucket) Dispose() error   { return b.Inner.Dispose() }

func (b *PaddedBucket) CreateShadow() (ioface.Bucket, error) {
	return b.Inner.CreateShadow()
}
