package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
)

// Supported JWT signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
	Public() crypto.PublicKey
}

// keySigner signs with whichever algorithm the private key implies.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSignerFromPEM parses a PEM private key and returns a Signer for it.
func NewSignerFromPEM(kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
	}
	return NewSigner(kid, key)
}

// NewSigner wraps a private key. RSA keys must be at least 2048 bits and
// ECDSA keys must be on P-256.
func NewSigner(kid string, key crypto.Signer) (Signer, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: key id is required", ErrKeyConfig)
	}

	var method jwt.SigningMethod
	switch k := key.(type) {
	case *rsa.PrivateKey:
		if k.N.BitLen() < 2048 {
			return nil, fmt.Errorf("%w: RSA key is %d bits, need at least 2048", ErrKeyConfig, k.N.BitLen())
		}
		method = jwt.SigningMethodRS256
	case *ecdsa.PrivateKey:
		if k.Curve.Params().Name != "P-256" {
			return nil, fmt.Errorf("%w: expected P-256 curve, got %s", ErrKeyConfig, k.Curve.Params().Name)
		}
		method = jwt.SigningMethodES256
	case ed25519.PrivateKey:
		method = jwt.SigningMethodEdDSA
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrKeyConfig, key)
	}

	jwk, err := NewJWK(kid, method.Alg(), key.Public())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
	}

	return &keySigner{kid: kid, method: method, key: key, jwk: jwk}, nil
}

func (s *keySigner) Alg() string              { return s.method.Alg() }
func (s *keySigner) KID() string              { return s.kid }
func (s *keySigner) PublicJWK() JWK           { return s.jwk }
func (s *keySigner) Public() crypto.PublicKey { return s.key.Public() }

// Sign serialises claims into a compact JWS with the kid header set.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
