package wrap

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestEncryptedBucketRoundTrip(t *testing.T) {
	eb, err := NewEncryptedBucket(NewPaddedBucket(store.NewMemoryStore()))
	require.NoError(t, err)

	w, err := eb.OpenWriter()
	require.NoError(t, err)
	payload := []byte("secret payload that is reasonably long")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, int64(len(payload)), eb.Size())
	require.GreaterOrEqual(t, eb.Inner.PaddedSize(), MinPadded)

	r, err := eb.OpenReader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, string(payload), string(got))
}

func TestEncryptedBucketCiphertextDiffersFromPlaintext(t *testing.T) {
	eb, err := NewEncryptedBucket(NewPaddedBucket(store.NewMemoryStore()))
	require.NoError(t, err)

	w, err := eb.OpenWriter()
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("A"), 64)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := eb.Inner.Inner.OpenReader()
	require.NoError(t, err)
	rawBytes, err := io.ReadAll(raw)
	require.NoError(t, err)
	require.NotEqual(t, payload, rawBytes[:len(payload)])
}

func TestEncryptedBucketSerializeWritesExpectedMagic(t *testing.T) {
	eb, err := NewEncryptedBucket(NewPaddedBucket(store.NewMemoryStore()))
	require.NoError(t, err)
	w, err := eb.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	err = eb.Serialize(&buf, func(io.Writer) error { return nil })
	require.NoError(t, err)

	require.Equal(t, []byte{0x66, 0xc7, 0x1f, 0xc9}, buf.Bytes()[:4])
}

func TestEncryptedBucketSerializeDeserializeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enc")
	fileInner := store.NewFileBucketStore(path)

	eb, err := NewEncryptedBucket(NewPaddedBucket(fileInner))
	require.NoError(t, err)

	w, err := eb.OpenWriter()
	require.NoError(t, err)
	payload := []byte("round trips through disk")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	require.NoError(t, eb.Serialize(&buf, func(iw io.Writer) error {
		return SerializeBaseFile(iw, fileInner)
	}))

	got, err := DeserializeEncryptedBucket(&buf, func(ir io.Reader) (ioface.Bucket, error) {
		return DeserializeBaseFile(ir, path)
	})
	require.NoError(t, err)
	require.Equal(t, eb.key, got.key)
	require.Equal(t, int64(len(payload)), got.Size())

	r, err := got.OpenReader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, string(payload), string(data))
}
