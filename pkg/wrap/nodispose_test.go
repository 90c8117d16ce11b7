package wrap

import (
	"bytes"
	"io"
	"testing"

	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestNoDisposeBucketIgnoresDispose(t *testing.T) {
	inner := store.NewMemoryStore()
	w, err := inner.OpenWriter()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b := NewNoDisposeBucket(inner)
	require.NoError(t, b.Dispose())
	require.False(t, inner.IsDisposed())

	require.NoError(t, inner.Dispose())
	require.True(t, inner.IsDisposed())
}

func TestNoDisposeRABIgnoresDispose(t *testing.T) {
	inner := store.NewMemoryRAB(4)
	r := NewNoDisposeRAB(inner)
	require.NoError(t, r.Dispose())

	require.NoError(t, inner.Pwrite(0, []byte("ab")))
}

func TestNoDisposeBucketSerializeDeserializeRoundTrip(t *testing.T) {
	inner := store.NewMemoryStore()
	w, err := inner.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("xyz"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b := NewNoDisposeBucket(inner)

	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf, func(iw io.Writer) error {
		_, err := iw.Write([]byte("stub-inner"))
		return err
	}))
	require.Equal(t, []byte{0xa8, 0x8d, 0xa5, 0xc2}, buf.Bytes()[:4])

	var innerPayload []byte
	got, err := DeserializeNoDisposeBucket(&buf, func(ir io.Reader) (ioface.Bucket, error) {
		innerPayload, _ = io.ReadAll(ir)
		return store.NewMemoryStore(), nil
	})
	require.NoError(t, err)
	require.Equal(t, "stub-inner", string(innerPayload))
	require.NoError(t, got.Dispose())
}

func TestNoDisposeRABSerializeDeserializeRoundTrip(t *testing.T) {
	inner := store.NewMemoryRAB(4)
	r := NewNoDisposeRAB(inner)

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf, func(iw io.Writer) error {
		_, err := iw.Write([]byte("stub-rab"))
		return err
	}))
	require.Equal(t, []byte{0xa8, 0x8d, 0xa5, 0xc2}, buf.Bytes()[:4])

	var innerPayload []byte
	got, err := DeserializeNoDisposeRAB(&buf, func(ir io.Reader) (ioface.RAB, error) {
		innerPayload, _ = io.ReadAll(ir)
		return store.NewMemoryRAB(4), nil
	})
	require.NoError(t, err)
	require.Equal(t, "stub-rab", string(innerPayload))
}
