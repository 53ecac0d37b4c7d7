package transcode

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeySize is the AES-128 key length in bytes.
const KeySize = 16

// KeyMaterial is one asset's encryption secret: a random AES-128 key and a
// random initialization vector in hex. Never reused across assets.
type KeyMaterial struct {
	Key   []byte
	IVHex string
}

// GenerateKeyMaterial draws fresh key material from the platform CSPRNG.
// A failing random source is fatal for the task, not retryable.
func GenerateKeyMaterial() (KeyMaterial, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return KeyMaterial{}, fmt.Errorf("read secure random source: %w", err)
	}
	iv := make([]byte, KeySize)
	if _, err := rand.Read(iv); err != nil {
		return KeyMaterial{}, fmt.Errorf("read secure random source: %w", err)
	}
	return KeyMaterial{Key: key, IVHex: hex.EncodeToString(iv)}, nil
}

// KeyInfo renders the three-line key-info record the encoder consumes:
// the externally reachable key-delivery URL, the key file location on disk,
// and the IV.
func KeyInfo(keyURL, keyFilePath, ivHex string) []byte {
	return []byte(fmt.Sprintf("%s\n%s\n%s", keyURL, keyFilePath, ivHex))
}
