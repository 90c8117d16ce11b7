package wrap

import (
	"bytes"
	"io"
	"testing"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

type fakeManager struct {
	calls []struct {
		disposable RealDisposable
		commitID   uint64
	}
}

func (m *fakeManager) DelayedDispose(d RealDisposable, commitID uint64) {
	m.calls = append(m.calls, struct {
		disposable RealDisposable
		commitID   uint64
	}{d, commitID})
}

func TestDelayedDisposeBucketEnqueuesOnceThenForwardsOnRealDispose(t *testing.T) {
	inner := store.NewMemoryStore()
	w, err := inner.OpenWriter()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	mgr := &fakeManager{}
	b := NewDelayedDisposeBucket(inner, mgr, 7)

	require.NoError(t, b.Dispose())
	require.NoError(t, b.Dispose())
	require.Len(t, mgr.calls, 1)
	require.Equal(t, uint64(7), mgr.calls[0].commitID)

	require.False(t, inner.IsDisposed())
	require.NoError(t, b.RealDispose())
	require.True(t, inner.IsDisposed())
}

func TestDelayedDisposeRABSentinelAfterDispose(t *testing.T) {
	inner := store.NewMemoryRAB(4)
	mgr := &fakeManager{}
	r := NewDelayedDisposeRAB(inner, mgr, 1)

	require.NoError(t, r.Pwrite(0, []byte("abcd")))
	require.NoError(t, r.Dispose())

	err := r.Pwrite(0, []byte("abcd"))
	require.True(t, ioerr.Is(err, ioerr.Disposed))

	require.NoError(t, r.RealDispose())
}

func TestDelayedDisposeBucketSerializeDeserializeRoundTrip(t *testing.T) {
	inner := store.NewMemoryStore()
	w, err := inner.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	mgr := &fakeManager{}
	b := NewDelayedDisposeBucket(inner, mgr, 42)

	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf, func(iw io.Writer) error {
		_, err := iw.Write([]byte("stub-inner"))
		return err
	}))
	require.Equal(t, []byte{0xa2, 0x8f, 0x2a, 0x2d}, buf.Bytes()[:4])

	var innerPayload []byte
	got, err := DeserializeDelayedDisposeBucket(&buf, mgr, func(ir io.Reader) (ioface.Bucket, error) {
		innerPayload, _ = io.ReadAll(ir)
		return store.NewMemoryStore(), nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(42), got.CreatedCommitID)
	require.Equal(t, "stub-inner", string(innerPayload))
}

func TestDelayedDisposeRABSerializeDeserializeRoundTrip(t *testing.T) {
	inner := store.NewMemoryRAB(4)
	mgr := &fakeManager{}
	r := NewDelayedDisposeRAB(inner, mgr, 9)

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf, func(iw io.Writer) error {
		_, err := iw.Write([]byte("stub-rab"))
		return err
	}))
	require.Equal(t, []byte{0x3f, 0xb6, 0x45, 0xde}, buf.Bytes()[:4])

	var innerPayload []byte
	got, err := DeserializeDelayedDisposeRAB(&buf, mgr, func(ir io.Reader) (ioface.RAB, error) {
		innerPayload, _ = io.ReadAll(ir)
		return store.NewMemoryRAB(4), nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.CreatedCommitID)
	require.Equal(t, "stub-rab", string(innerPayload))
}
