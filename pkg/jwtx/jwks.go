package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// JWK represents a public key in JSON Web Key format (RFC 7517).
type JWK struct {
	Kty string `json:"kty"`           // "RSA", "OKP", "EC"
	Use string `json:"use,omitempty"` // always "sig" here
	Alg string `json:"alg,omitempty"` // "RS256", "ES256", "EdDSA"
	Kid string `json:"kid,omitempty"`

	// RSA stuff
	N string `json:"n,omitempty"` // modulus (base64url)
	E string `json:"e,omitempty"` // exponent (base64url)

	// OKP and EC
	Crv string `json:"crv,omitempty"` // "Ed25519" or "P-256"
	X   string `json:"x,omitempty"`   // base64url encoded public key or x-coordinate
	Y   string `json:"y,omitempty"`   // base64url encoded y-coordinate (ECDSA only)
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewRSAJWK builds a JWK for an RSA public key.
func NewRSAJWK(kid, use, alg string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: use,
		Alg: alg,
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// NewEd25519JWK builds a JWK for an Ed25519 public key.
// Ed25519 keys use the "OKP" (Octet Key Pair) key type.
func NewEd25519JWK(kid, use, alg string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// NewES256JWK builds a JWK for an ECDSA P-256 public key.
// ES256 keys use the "EC" (Elliptic Curve) key type with the P-256 curve.
func NewES256JWK(kid, use, alg string, pub *ecdsa.PublicKey) JWK {
	// Coordinates are left-padded to the 32 byte field size.
	xBytes := pub.X.Bytes()
	yBytes := pub.Y.Bytes()
	x := make([]byte, 32)
	y := make([]byte, 32)
	copy(x[32-len(xBytes):], xBytes)
	copy(y[32-len(yBytes):], yBytes)

	return JWK{
		Kty: "EC",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}
}

// NewJWK builds a signing JWK for any supported public key type.
func NewJWK(kid, alg string, pub crypto.PublicKey) (JWK, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return NewRSAJWK(kid, "sig", alg, k), nil
	case *ecdsa.PublicKey:
		return NewES256JWK(kid, "sig", alg, k), nil
	case ed25519.PublicKey:
		return NewEd25519JWK(kid, "sig", alg, k), nil
	default:
		return JWK{}, fmt.Errorf("jwtx: unsupported public key type %T", pub)
	}
}

// algForKey picks the JWS algorithm implied by a public key.
func algForKey(pub crypto.PublicKey) (string, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return AlgorithmRS256, nil
	case *ecdsa.PublicKey:
		return AlgorithmES256, nil
	case ed25519.PublicKey:
		return AlgorithmEdDSA, nil
	default:
		return "", fmt.Errorf("jwtx: unsupported public key type %T", pub)
	}
}
