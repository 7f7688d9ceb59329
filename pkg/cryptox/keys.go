package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Signing key algorithms understood by GenerateSigningKey.
const (
	KeyRS256 = "RS256"
	KeyES256 = "ES256"
	KeyEdDSA = "EdDSA"
)

// GenerateSigningKey creates a fresh private key for alg and returns it as
// a PKCS8 "PRIVATE KEY" PEM block. RSA keys are 2048 bits.
func GenerateSigningKey(alg string) ([]byte, error) {
	var (
		key any
		err error
	)

	switch alg {
	case KeyRS256:
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	case KeyES256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyEdDSA:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("cryptox: unsupported key algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate %s key: %w", alg, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM accepts PKCS8 ("PRIVATE KEY"), PKCS1 ("RSA PRIVATE KEY")
// and SEC1 ("EC PRIVATE KEY") encodings.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("cryptox: no PEM block found")
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("cryptox: unsupported PEM type %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse %s: %w", block.Type, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("cryptox: %T is not a signing key", key)
	}
	return signer, nil
}

// ParsePublicKeyPEM accepts PKIX ("PUBLIC KEY") and PKCS1 ("RSA PUBLIC KEY").
func ParsePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("cryptox: no PEM block found")
	}

	switch block.Type {
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse PUBLIC KEY: %w", err)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse RSA PUBLIC KEY: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported PEM type %q", block.Type)
	}
}

// PublicKeyPEM encodes a public key as a PKIX "PUBLIC KEY" block.
func PublicKeyPEM(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKIX: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
