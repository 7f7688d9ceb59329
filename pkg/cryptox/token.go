package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Token sizes in bytes before encoding.
const (
	TokenSize128 = 16 // session and state handles
	TokenSize256 = 32 // authorization codes
)

// GenerateToken returns size random bytes as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateOpaque returns a fresh opaque handle together with the
// fingerprint that should be stored in its place.
func GenerateOpaque(size int) (raw, fingerprint string, err error) {
	raw, err = GenerateToken(size)
	if err != nil {
		return "", "", err
	}
	return raw, FingerprintToken(raw), nil
}

// FingerprintToken returns the base64url SHA-256 of token (43 chars).
// Stores keep fingerprints so a database leak does not leak live handles.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
