package jwtx

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
)

// KeyManager owns the active signing key and the set of keys that verify.
// It is built once at startup and shared by every request; rotation swaps
// the active signer under a lock while older keys keep verifying.
type KeyManager struct {
	mu     sync.RWMutex
	active Signer
	keys   *KeySet
}

// VerificationKey is a public key that still verifies tokens but never
// signs new ones, typically the previous key after a rotation.
type VerificationKey struct {
	KeyID     string
	PublicPEM []byte
}

// KeyManagerOptions configures NewKeyManager.
type KeyManagerOptions struct {
	// PrivateKeyPEM is the active signing key (PKCS8, PKCS1 or SEC1).
	PrivateKeyPEM []byte

	// PublicKeyPEM is optional. When set it must match PrivateKeyPEM.
	PublicKeyPEM []byte

	// KeyID is published as "kid". Derived from the public key when empty.
	KeyID string

	VerificationKeys []VerificationKey
}

// NewKeyManager loads configured key material. Every failure wraps
// ErrKeyConfig so callers can report a configuration error.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if len(opts.PrivateKeyPEM) == 0 {
		return nil, fmt.Errorf("%w: no private key configured", ErrKeyConfig)
	}

	key, err := cryptox.ParsePrivateKeyPEM(opts.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
	}

	if len(opts.PublicKeyPEM) > 0 {
		pub, err := cryptox.ParsePublicKeyPEM(opts.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
		}
		if !publicKeysEqual(pub, key.Public()) {
			return nil, fmt.Errorf("%w: public key does not match private key", ErrKeyConfig)
		}
	}

	kid := opts.KeyID
	if kid == "" {
		kid, err = DeriveKeyID(key.Public())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
		}
	}

	signer, err := NewSigner(kid, key)
	if err != nil {
		return nil, err
	}

	km := &KeyManager{active: signer, keys: NewKeySet()}
	if err := km.keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
	}

	for _, vk := range opts.VerificationKeys {
		if vk.KeyID == "" || vk.KeyID == kid {
			return nil, fmt.Errorf("%w: verification key needs a distinct kid", ErrKeyConfig)
		}
		pub, err := cryptox.ParsePublicKeyPEM(vk.PublicPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: verification key %q: %w", ErrKeyConfig, vk.KeyID, err)
		}
		if err := km.keys.AddPublicKey(vk.KeyID, pub); err != nil {
			return nil, fmt.Errorf("%w: verification key %q: %w", ErrKeyConfig, vk.KeyID, err)
		}
	}

	return km, nil
}

// NewEphemeralKeyManager generates an in-memory key. Tokens do not survive
// a restart, so this is only for development and tests.
func NewEphemeralKeyManager(algorithm string) (*KeyManager, error) {
	pemKey, err := cryptox.GenerateSigningKey(algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyConfig, err)
	}
	return NewKeyManager(KeyManagerOptions{PrivateKeyPEM: pemKey})
}

// Signer returns the active signing key.
func (km *KeyManager) Signer() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.active
}

// KeySet exposes the verification keys for JWKS publishing.
func (km *KeyManager) KeySet() *KeySet {
	return km.keys
}

// IsReady reports whether a signer and at least one verification key exist.
func (km *KeyManager) IsReady() bool {
	return km.Signer() != nil && km.keys.IsReady()
}

// Rotate makes next the active signer. The previous key stays in the
// KeySet until Retire is called for it.
func (km *KeyManager) Rotate(next Signer) error {
	if err := km.keys.AddSigner(next); err != nil {
		return err
	}
	km.mu.Lock()
	km.active = next
	km.mu.Unlock()
	return nil
}

// Retire removes a verification key. The active key cannot be retired.
func (km *KeyManager) Retire(kid string) error {
	km.mu.RLock()
	active := km.active.KID()
	km.mu.RUnlock()

	if kid == active {
		return errors.New("jwtx: cannot retire the active signing key")
	}
	if _, err := km.keys.Get(kid); err != nil {
		return err
	}
	km.keys.Remove(kid)
	return nil
}

// DeriveKeyID returns a stable kid from the SHA-256 of the PKIX encoding,
// so the same key always publishes the same kid across restarts.
func DeriveKeyID(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return cryptox.FingerprintToken(string(der))[:16], nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	eq, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && eq.Equal(b)
}
