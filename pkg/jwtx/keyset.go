package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
	"slices"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds every public key that may verify a token, keyed by kid.
// The active signing key and any retired-but-still-valid keys live here
// side by side so tokens minted before a rotation keep verifying.
type KeySet struct {
	mu   sync.RWMutex
	jwks []JWK
	pub  map[string]crypto.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]crypto.PublicKey)}
}

// AddSigner registers a Signer's public JWK into the KeySet.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddPublicKey registers a verification-only key.
func (k *KeySet) AddPublicKey(kid string, pub crypto.PublicKey) error {
	alg, err := algForKey(pub)
	if err != nil {
		return err
	}
	j, err := NewJWK(kid, alg, pub)
	if err != nil {
		return err
	}
	return k.AddJWK(j)
}

// AddJWK parses j and adds it, replacing any key with the same kid.
func (k *KeySet) AddJWK(j JWK) error {
	if j.Kid == "" {
		return errors.New("jwtx: JWK without kid")
	}
	key, err := parseJWKToKey(j)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.jwks = slices.DeleteFunc(k.jwks, func(x JWK) bool { return x.Kid == j.Kid })
	k.jwks = append(k.jwks, j)
	k.pub[j.Kid] = key
	return nil
}

// Remove drops kid. Tokens signed with it stop verifying.
func (k *KeySet) Remove(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.pub, kid)
	k.jwks = slices.DeleteFunc(k.jwks, func(x JWK) bool { return x.Kid == kid })
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a snapshot for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: slices.Clone(k.jwks)}
}

// Algorithms lists the distinct algorithms of the loaded keys.
func (k *KeySet) Algorithms() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var algs []string
	for _, j := range k.jwks {
		if !slices.Contains(algs, j.Alg) {
			algs = append(algs, j.Alg)
		}
	}
	return algs
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// parseJWKToKey converts a JWK into a crypto.PublicKey.
func parseJWKToKey(j JWK) (crypto.PublicKey, error) {
	dec := base64.RawURLEncoding

	switch j.Kty {
	case "RSA":
		nb, err := dec.DecodeString(j.N)
		if err != nil {
			return nil, err
		}
		eb, err := dec.DecodeString(j.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(new(big.Int).SetBytes(eb).Int64()),
		}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		xb, err := dec.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		xb, err := dec.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		yb, err := dec.DecodeString(j.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}
