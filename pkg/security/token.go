package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultKeyBytes yields 40 hex characters.
const DefaultKeyBytes = 20

// GenerateKey returns a random hex string built from n random bytes.
func GenerateKey(n int) (string, error) {
	if n <= 0 {
		n = DefaultKeyBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
