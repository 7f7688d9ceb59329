package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// KeyRotationService swaps the active signing key at runtime. The
// previous key keeps verifying for GracePeriod so tokens signed with it
// stay valid until they expire, then it is retired from the JWKS.
type KeyRotationService struct {
	KeyManager *jwtx.KeyManager
	Algorithm  string

	// GracePeriod defaults to the access token lifetime.
	GracePeriod time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// RotateKeyResult reports the outcome of a rotation.
type RotateKeyResult struct {
	ActiveKID  string
	RetiredKID string
	RetireAt   time.Time
}

// RotateGenerated generates a fresh key of the configured algorithm and
// makes it active. Used with ephemeral keys in development.
func (s *KeyRotationService) RotateGenerated(ctx context.Context) (RotateKeyResult, error) {
	pemKey, err := cryptox.GenerateSigningKey(s.Algorithm)
	if err != nil {
		return RotateKeyResult{}, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return s.RotateFromPEM(ctx, "", pemKey)
}

// RotateFromPEM makes the given private key active. Rotating to the key
// that is already active is a no-op.
func (s *KeyRotationService) RotateFromPEM(ctx context.Context, kid string, pemKey []byte) (RotateKeyResult, error) {
	l := slogx.FromContext(ctx)

	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return RotateKeyResult{}, fmt.Errorf("%w: %w", jwtx.ErrKeyConfig, err)
	}
	if kid == "" {
		if kid, err = jwtx.DeriveKeyID(key.Public()); err != nil {
			return RotateKeyResult{}, fmt.Errorf("%w: %w", jwtx.ErrKeyConfig, err)
		}
	}

	previous := s.KeyManager.Signer().KID()
	if kid == previous {
		l.Info("signing key unchanged", "kid", kid)
		return RotateKeyResult{ActiveKID: kid}, nil
	}

	next, err := jwtx.NewSigner(kid, key)
	if err != nil {
		return RotateKeyResult{}, err
	}
	if err := s.KeyManager.Rotate(next); err != nil {
		return RotateKeyResult{}, fmt.Errorf("failed to activate key: %w", err)
	}

	grace := s.GracePeriod
	if grace <= 0 {
		grace = jwtx.AccessTokenTTL
	}
	s.scheduleRetire(ctx, previous, grace)

	l.Info("signing key rotated", "kid", kid, "previous_kid", previous, "retire_in", grace)
	return RotateKeyResult{ActiveKID: kid, RetiredKID: previous, RetireAt: time.Now().Add(grace)}, nil
}

// Stop cancels pending retirements.
func (s *KeyRotationService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kid, t := range s.pending {
		t.Stop()
		delete(s.pending, kid)
	}
}

func (s *KeyRotationService) scheduleRetire(ctx context.Context, kid string, after time.Duration) {
	l := slogx.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]*time.Timer)
	}
	if t, ok := s.pending[kid]; ok {
		t.Stop()
	}
	s.pending[kid] = time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.pending, kid)
		s.mu.Unlock()

		if err := s.KeyManager.Retire(kid); err != nil {
			l.Warn("failed to retire signing key", "kid", kid, "error", err)
			return
		}
		l.Info("signing key retired", "kid", kid)
	})
}
