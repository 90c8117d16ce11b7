package wrap

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeBaseFileUnwritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unwritten")
	inner := store.NewFileBucketStore(path)

	var buf bytes.Buffer
	require.NoError(t, SerializeBaseFile(&buf, inner))
	require.Equal(t, []byte{0xc4, 0xb7, 0x53, 0x3d}, buf.Bytes()[:4])

	got, err := DeserializeBaseFile(&buf, path)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Size())
}

func TestSerializeDeserializeBaseFileWritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "written")
	inner := store.NewFileBucketStore(path)

	w, err := inner.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("hello base file"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	require.NoError(t, SerializeBaseFile(&buf, inner))

	got, err := DeserializeBaseFile(&buf, path)
	require.NoError(t, err)
	require.Equal(t, int64(len("hello base file")), got.Size())

	r, err := got.OpenReader()
	require.NoError(t, err)
	defer r.Close()
}
