package cryptox

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// PKCE code challenge methods (RFC 7636).
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// S256Challenge derives the S256 code challenge for a verifier.
func S256Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// NewPKCEVerifier returns a random 43 character code verifier.
func NewPKCEVerifier() string {
	return oauth2.GenerateVerifier()
}

// ValidPKCEVerifier reports whether v is 43-128 characters drawn from the
// unreserved set [A-Z a-z 0-9 - . _ ~].
func ValidPKCEVerifier(v string) bool {
	if len(v) < 43 || len(v) > 128 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}

// SupportedPKCEMethod reports whether method is accepted for new
// authorization requests. plain is only accepted when allowPlain is set.
func SupportedPKCEMethod(method string, allowPlain bool) bool {
	switch method {
	case PKCEMethodS256:
		return true
	case PKCEMethodPlain:
		return allowPlain
	default:
		return false
	}
}

// VerifyPKCE checks a code verifier against the stored challenge.
// The comparison is constant time.
func VerifyPKCE(challenge, method, verifier string, allowPlain bool) bool {
	if challenge == "" || !ValidPKCEVerifier(verifier) {
		return false
	}

	var computed string
	switch method {
	case PKCEMethodS256:
		computed = S256Challenge(verifier)
	case PKCEMethodPlain:
		if !allowPlain {
			return false
		}
		computed = verifier
	default:
		return false
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
