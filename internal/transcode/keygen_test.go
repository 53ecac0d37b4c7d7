package transcode

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeyMaterial(t *testing.T) {
	m, err := GenerateKeyMaterial()
	require.NoError(t, err)
	require.Len(t, m.Key, KeySize)
	require.Len(t, m.IVHex, 32)

	iv, err := hex.DecodeString(m.IVHex)
	require.NoError(t, err)
	require.Len(t, iv, 16)
}

func TestGenerateKeyMaterial_NeverReused(t *testing.T) {
	a, err := GenerateKeyMaterial()
	require.NoError(t, err)
	b, err := GenerateKeyMaterial()
	require.NoError(t, err)

	require.NotEqual(t, a.Key, b.Key)
	require.NotEqual(t, a.IVHex, b.IVHex)
}

func TestKeyInfo_Format(t *testing.T) {
	record := KeyInfo("https://cdn.example.com/lessons/5/key", "/media/hls/lesson_5/g1/enc.key", "00112233445566778899aabbccddeeff")

	lines := strings.Split(string(record), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "https://cdn.example.com/lessons/5/key", lines[0])
	require.Equal(t, "/media/hls/lesson_5/g1/enc.key", lines[1])
	require.Equal(t, "00112233445566778899aabbccddeeff", lines[2])
}
