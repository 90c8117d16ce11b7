package tempio

import (
	"io"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
)

// maxSkipAttempts bounds the re-seek retry loop used to rebind a reader
// across migration (SPEC_FULL.md §9 open question: a bounded-retry
// skip() loop rather than an unbounded one, so a pathological short-read
// source cannot hang a migration pass forever).
const maxSkipAttempts = 8

// tempReader is a reader stream over a TempBucket. It tracks the
// writer_generation it was opened against and its own read position so
// migration can decide whether to rebind it or detach it.
type tempReader struct {
	container  *TempBucket
	generation uint64
	pos        int64
	underlying ioface.Reader
	detached   bool
	closed     bool
}

func (r *tempReader) Read(p []byte) (int, error) {
	r.container.mu.Lock()
	defer r.container.mu.Unlock()

	if r.closed {
		return 0, ioerr.New(ioerr.Closed, "TempBucket.Reader.Read")
	}
	if r.detached {
		return 0, ioerr.New(ioerr.Disposed, "TempBucket.Reader.Read")
	}

	n, err := r.underlying.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *tempReader) Close() error {
	r.container.mu.Lock()
	defer r.container.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	delete(r.container.readers, r)
	if r.underlying != nil {
		return r.underlying.Close()
	}
	return nil
}

// detachLocked marks the reader invalid after a migration that
// outpaced it (a new writer opened since this reader was created). Must
// be called with the container mutex held.
func (r *tempReader) detachLocked() {
	if r.closed || r.detached {
		return
	}
	r.detached = true
	if r.underlying != nil {
		r.underlying.Close()
	}
}

// skipBytes discards n bytes from r, tolerating short reads, retrying
// up to maxSkipAttempts times before giving up.
func skipBytes(r ioface.Reader, n int64) error {
	remaining := n
	buf := make([]byte, 32*1024)
	attempts := 0
	for remaining > 0 {
		want := int64(len(buf))
		if remaining < want {
			want = remaining
		}
		read, err := r.Read(buf[:want])
		remaining -= int64(read)
		if err != nil {
			if err == io.EOF && remaining == 0 {
				return nil
			}
			return ioerr.Wrap(ioerr.IO, "TempBucket.skip", err)
		}
		if read == 0 {
			attempts++
			if attempts >= maxSkipAttempts {
				return ioerr.New(ioerr.IO, "TempBucket.skip")
			}
		} else {
			attempts = 0
		}
	}
	return nil
}
