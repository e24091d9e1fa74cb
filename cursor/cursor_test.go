package cursor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenAndReadByte(t *testing.T) {
	path := writeTemp(t, []byte{0x00, 0x00, 0x01, 0x67, 0xAB})

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, 5, c.Len())
	require.Equal(t, byte(0x00), c.ReadByte())

	c.Advance(3)
	require.Equal(t, byte(0x67), c.ReadByte())

	c.Advance(2)
	require.True(t, c.EOF())
	require.Equal(t, byte(0x0), c.ReadByte())
}

func TestSaveRestore(t *testing.T) {
	path := writeTemp(t, []byte{1, 2, 3, 4, 5})
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	c.Advance(2)
	c.SavePos()
	c.Advance(2)
	require.Equal(t, 4, c.Pos())

	c.RestorePos()
	require.Equal(t, 2, c.Pos())
}

func TestPeekAtBounds(t *testing.T) {
	path := writeTemp(t, []byte{1, 2, 3, 4})
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	dst := make([]byte, 2)
	require.True(t, c.PeekAt(1, dst))
	require.Equal(t, []byte{2, 3}, dst)

	require.False(t, c.PeekAt(3, dst))
}

func TestRewind(t *testing.T) {
	path := writeTemp(t, []byte{1, 2, 3})
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	c.Advance(3)
	require.True(t, c.EOF())
	c.Rewind()
	require.False(t, c.EOF())
	require.Equal(t, 0, c.Pos())
}

func TestIVFHeaderStrip(t *testing.T) {
	data := append([]byte("DKIF"), make([]byte, 8)...)
	data = append(data, 0xAB, 0xCD)

	path := writeTemp(t, data)
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.IsIVF())
	require.NoError(t, c.StripIVFHeader())
	require.Equal(t, byte(0xAB), c.ReadByte())
}

func TestStripIVFHeaderNoopOnRawStream(t *testing.T) {
	path := writeTemp(t, []byte{0x00, 0x00, 0x01, 0x67})
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	require.False(t, c.IsIVF())
	require.NoError(t, c.StripIVFHeader())
	require.Equal(t, 0, c.Pos())
}
