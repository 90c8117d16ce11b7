package wrap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyphanet/support/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestPersistentTempFileBucketSerializeDeserializeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t-1")

	inner := store.NewFileBucketStore(path)
	b := NewPersistentTempFileBucket(inner, path, true)

	w, err := b.OpenWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("persisted payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	b.SetReadOnly()

	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf))
	require.Equal(t, []byte{0x2f, 0xfd, 0xd4, 0xcf}, buf.Bytes()[:4])

	got, err := DeserializePersistentTempFileBucket(&buf)
	require.NoError(t, err)

	require.Equal(t, b.FilenameID, got.FilenameID)
	require.True(t, got.DeleteOnDispose)
	require.True(t, got.IsReadOnly())
	require.Equal(t, int64(len("persisted payload")), got.Size())

	r, err := got.OpenReader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "persisted payload", string(data))

	require.NoError(t, got.Dispose())
}

func TestPersistentTempFileBucketDisposeRespectsDeleteOnDisposeFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t-2")

	inner := store.NewFileBucketStore(path)
	b := NewPersistentTempFileBucket(inner, path, false)

	w, err := b.OpenWriter()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, b.Dispose())
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
