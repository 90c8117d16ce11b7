package wrap

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRABOverFileSerializeDeserializeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rab.dat")
	rf, err := NewRABOverFile(path, 16)
	require.NoError(t, err)
	require.NoError(t, rf.Pwrite(0, []byte("0123456789abcdef")))
	rf.SetReadOnly()

	var buf bytes.Buffer
	require.NoError(t, rf.Serialize(&buf))

	got, err := DeserializeRABOverFile(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(16), got.Size())
	require.True(t, got.IsReadOnly())

	out := make([]byte, 16)
	require.NoError(t, got.Pread(0, out))
	require.Equal(t, "0123456789abcdef", string(out))
}

func TestRABOverFileDeserializeRejectsWrongMagic(t *testing.T) {
	bad := bytes.NewBuffer([]byte{0, 0, 0, 0})
	_, err := DeserializeRABOverFile(bad)
	require.Error(t, err)
}
