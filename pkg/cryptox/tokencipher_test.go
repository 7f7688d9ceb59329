package cryptox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipherFromHex(testHexKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"zoom-access-token", "", strings.Repeat("x", 4096)} {
		enc, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		require.Len(t, strings.Split(enc, ":"), 3)
		require.NotContains(t, enc, plaintext+":")

		got, err := c.Decrypt(enc)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestTokenCipher_FreshIV(t *testing.T) {
	c, err := NewTokenCipherFromHex(testHexKey)
	require.NoError(t, err)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestTokenCipher_TamperDetection(t *testing.T) {
	c, err := NewTokenCipherFromHex(testHexKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("asana-refresh-token")
	require.NoError(t, err)
	parts := strings.Split(enc, ":")

	flip := func(seg string) string {
		raw, err := base64.RawURLEncoding.DecodeString(seg)
		require.NoError(t, err)
		raw[0] ^= 0x01
		return base64.RawURLEncoding.EncodeToString(raw)
	}

	tests := []struct {
		name  string
		input string
	}{
		{"flipped iv", flip(parts[0]) + ":" + parts[1] + ":" + parts[2]},
		{"flipped tag", parts[0] + ":" + flip(parts[1]) + ":" + parts[2]},
		{"flipped ciphertext", parts[0] + ":" + parts[1] + ":" + flip(parts[2])},
		{"missing segment", parts[0] + ":" + parts[2]},
		{"not base64", "!!:" + parts[1] + ":" + parts[2]},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decrypt(tt.input)
			require.ErrorIs(t, err, ErrDecrypt)
			require.Empty(t, got)
		})
	}
}

func TestTokenCipher_WrongKey(t *testing.T) {
	c1, err := NewTokenCipherFromHex(testHexKey)
	require.NoError(t, err)

	other := make([]byte, TokenKeySize)
	other[0] = 0xff
	c2, err := NewTokenCipherFromHex(hex.EncodeToString(other))
	require.NoError(t, err)

	enc, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(enc)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestNewTokenCipher_InvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too short", "0011"},
		{"not hex", strings.Repeat("zz", 32)},
		{"too long", testHexKey + "00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenCipherFromHex(tt.key)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}
