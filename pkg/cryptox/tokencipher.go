package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// TokenKeySize is the AES-256 key length in bytes.
	TokenKeySize = 32

	gcmTagSize = 16
)

var (
	// ErrInvalidKey reports key material that is not 32 bytes of hex.
	ErrInvalidKey = errors.New("cryptox: encryption key must be 32 bytes encoded as 64 hex characters")

	// ErrDecrypt is returned for any ciphertext that fails to parse or
	// authenticate. Callers never receive partially decrypted data.
	ErrDecrypt = errors.New("cryptox: token decryption failed")
)

// TokenCipher encrypts third-party OAuth tokens at rest using AES-256-GCM.
//
// The encoded form is three base64url segments joined by colons:
//
//	iv:tag:ciphertext
//
// A fresh 12-byte IV is drawn for every call to Encrypt.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipherFromHex builds a TokenCipher from a 64 character hex key.
func NewTokenCipherFromHex(hexKey string) (*TokenCipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return NewTokenCipher(key)
}

// NewTokenCipher builds a TokenCipher from a raw 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != TokenKeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the iv:tag:ciphertext encoding.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("cryptox: generate iv: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it back out.
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	enc := base64.RawURLEncoding
	return enc.EncodeToString(iv) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. Any malformed segment, wrong key or tampered
// byte yields ErrDecrypt.
func (c *TokenCipher) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 segments, got %d", ErrDecrypt, len(parts))
	}

	enc := base64.RawURLEncoding
	iv, err := enc.DecodeString(parts[0])
	if err != nil || len(iv) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv", ErrDecrypt)
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return "", fmt.Errorf("%w: bad tag", ErrDecrypt)
	}
	ct, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrDecrypt)
	}

	plaintext, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	return string(plaintext), nil
}
