package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisk_WriteReadRoundTrip(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Write("lesson_5/g1/index.m3u8", []byte("#EXTM3U\n")))
	require.True(t, d.Exists("lesson_5/g1/index.m3u8"))

	data, err := d.Read("lesson_5/g1/index.m3u8")
	require.NoError(t, err)
	require.Equal(t, []byte("#EXTM3U\n"), data)

	n, err := d.Size("lesson_5/g1/index.m3u8")
	require.NoError(t, err)
	require.Equal(t, int64(8), n)

	rc, err := d.Open("lesson_5/g1/index.m3u8")
	require.NoError(t, err)
	defer rc.Close()
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, streamed)
}

func TestDisk_RejectsTraversal(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	// Clean("/../../etc/passwd") collapses to /etc/passwd under the root, so
	// traversal never leaves it; the file simply does not exist there.
	require.False(t, d.Exists("../../etc/passwd"))
	_, err = d.Read("../../etc/passwd")
	require.Error(t, err)
}

func TestDisk_RemoveAllAndList(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Write("lesson_5/g1/segment_000.ts", []byte("a")))
	require.NoError(t, d.Write("lesson_5/g2/segment_000.ts", []byte("b")))

	names, err := d.List("lesson_5")
	require.NoError(t, err)
	require.Equal(t, []string{"g1", "g2"}, names)

	require.NoError(t, d.RemoveAll("lesson_5/g1"))
	names, err = d.List("lesson_5")
	require.NoError(t, err)
	require.Equal(t, []string{"g2"}, names)

	// Missing directories list as empty, missing files remove cleanly.
	names, err = d.List("lesson_99")
	require.NoError(t, err)
	require.Empty(t, names)
	require.NoError(t, d.Remove("lesson_99/none.ts"))
}
