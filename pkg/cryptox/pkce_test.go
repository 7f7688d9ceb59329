package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyPKCE(t *testing.T) {
	// RFC 7636 appendix B.
	const (
		verifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	)

	require.Equal(t, challenge, S256Challenge(verifier))

	tests := []struct {
		name       string
		challenge  string
		method     string
		verifier   string
		allowPlain bool
		want       bool
	}{
		{"s256 match", challenge, PKCEMethodS256, verifier, false, true},
		{"s256 wrong verifier", challenge, PKCEMethodS256, strings.Repeat("a", 43), false, false},
		{"empty verifier", challenge, PKCEMethodS256, "", false, false},
		{"short verifier", challenge, PKCEMethodS256, "abc", false, false},
		{"illegal characters", challenge, PKCEMethodS256, strings.Repeat("a", 42) + "!", false, false},
		{"empty challenge", "", PKCEMethodS256, verifier, false, false},
		{"plain disallowed", verifier, PKCEMethodPlain, verifier, false, false},
		{"plain allowed", verifier, PKCEMethodPlain, verifier, true, true},
		{"unknown method", challenge, "S512", verifier, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, VerifyPKCE(tt.challenge, tt.method, tt.verifier, tt.allowPlain))
		})
	}
}

func TestNewPKCEVerifier(t *testing.T) {
	v := NewPKCEVerifier()
	require.True(t, ValidPKCEVerifier(v))
	require.True(t, VerifyPKCE(S256Challenge(v), PKCEMethodS256, v, false))
	require.NotEqual(t, v, NewPKCEVerifier())
}

func TestSupportedPKCEMethod(t *testing.T) {
	require.True(t, SupportedPKCEMethod(PKCEMethodS256, false))
	require.False(t, SupportedPKCEMethod(PKCEMethodPlain, false))
	require.True(t, SupportedPKCEMethod(PKCEMethodPlain, true))
	require.False(t, SupportedPKCEMethod("", true))
}
