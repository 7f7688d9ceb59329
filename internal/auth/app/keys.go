package app

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager from configured key material.
//
// Sources, in order:
//   - AUTH_SIGNING_KEY_FILE or AUTH_SIGNING_KEY: the active signing key.
//     The algorithm follows the key type (RS256, ES256 or EdDSA).
//   - AUTH_PUBLIC_KEY_FILE: optional, must match the private key.
//   - AUTH_VERIFY_KEYS_FILE: a JWKS of previous public keys that still
//     verify tokens during a rotation but never sign.
//
// With ENV=dev and no key material a key is generated in memory. Tokens
// then become invalid on every restart.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	if !cfg.hasKeyMaterial() {
		if !cfg.IsDev() {
			return nil, &ConfigurationError{Key: "AUTH_SIGNING_KEY_FILE", Reason: "a signing key is required outside dev"}
		}
		km, err := jwtx.NewEphemeralKeyManager(cfg.KeyAlgorithm)
		if err != nil {
			return nil, err
		}
		logger.Warn("generated ephemeral signing key, tokens will not survive a restart",
			"algorithm", km.Signer().Alg(),
			"kid", km.Signer().KID(),
		)
		return km, nil
	}

	privatePEM, err := signingKeyPEM(cfg)
	if err != nil {
		return nil, err
	}

	opts := jwtx.KeyManagerOptions{PrivateKeyPEM: privatePEM, KeyID: cfg.SigningKeyID}
	if cfg.PublicKeyFile != "" {
		opts.PublicKeyPEM, err = os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, &ConfigurationError{Key: "AUTH_PUBLIC_KEY_FILE", Reason: err.Error()}
		}
	}

	km, err := jwtx.NewKeyManager(opts)
	if err != nil {
		return nil, &ConfigurationError{Key: "AUTH_SIGNING_KEY_FILE", Reason: err.Error()}
	}

	if cfg.VerifyKeysFile != "" {
		n, err := loadVerifyKeys(km, cfg.VerifyKeysFile)
		if err != nil {
			return nil, &ConfigurationError{Key: "AUTH_VERIFY_KEYS_FILE", Reason: err.Error()}
		}
		logger.Info("loaded verification keys", "count", n)
	}

	logger.Info("signing key loaded",
		"algorithm", km.Signer().Alg(),
		"kid", km.Signer().KID(),
		"algorithms", km.KeySet().Algorithms(),
	)
	return km, nil
}

// signingKeyPEM reads the active private key. It is called again on
// SIGHUP so a replaced file becomes the new signing key.
func signingKeyPEM(cfg Config) ([]byte, error) {
	if cfg.SigningKeyFile != "" {
		b, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, &ConfigurationError{Key: "AUTH_SIGNING_KEY_FILE", Reason: err.Error()}
		}
		return b, nil
	}
	// Inline keys often arrive with escaped newlines.
	return []byte(strings.ReplaceAll(cfg.SigningKey, `\n`, "\n")), nil
}

func loadVerifyKeys(km *jwtx.KeyManager, path string) (int, error) {
	b, err := os.ReadFile(path) // #nosec G304 - operator supplied path
	if err != nil {
		return 0, err
	}
	var set jwtx.JWKS
	if err := json.Unmarshal(b, &set); err != nil {
		return 0, fmt.Errorf("parse JWKS: %w", err)
	}
	for _, k := range set.Keys {
		if k.Kid == km.Signer().KID() {
			continue
		}
		if err := km.KeySet().AddJWK(k); err != nil {
			return 0, fmt.Errorf("key %q: %w", k.Kid, err)
		}
	}
	return len(set.Keys), nil
}

// loadPepper returns the password pepper. Dev runs without one.
func loadPepper(cfg Config, logger *slog.Logger) (string, error) {
	if cfg.PasswordPepper != "" {
		return cfg.PasswordPepper, nil
	}
	if cfg.PepperFile != "" {
		b, err := os.ReadFile(cfg.PepperFile)
		if err != nil {
			return "", &ConfigurationError{Key: "AUTH_PEPPER_FILE", Reason: err.Error()}
		}
		return strings.TrimSpace(string(b)), nil
	}
	logger.Warn("no password pepper configured")
	return "", nil
}

// loadTokenCipher builds the cipher for platform tokens. In dev without a
// key a random one is used, so stored connections do not survive a
// restart.
func loadTokenCipher(cfg Config, logger *slog.Logger) (*cryptox.TokenCipher, error) {
	if cfg.EncryptionKey != "" {
		c, err := cryptox.NewTokenCipherFromHex(cfg.EncryptionKey)
		if err != nil {
			return nil, &ConfigurationError{Key: "TOKEN_ENCRYPTION_KEY", Reason: err.Error()}
		}
		return c, nil
	}
	if !cfg.IsDev() {
		return nil, &ConfigurationError{Key: "TOKEN_ENCRYPTION_KEY", Reason: "is required outside dev"}
	}

	key := make([]byte, cryptox.TokenKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	logger.Warn("generated ephemeral token encryption key, platform connections will not survive a restart")
	return cryptox.NewTokenCipher(key)
}
