package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/idx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// Connection is the token-free view of a platform link.
type Connection struct {
	Platform    domain.Platform
	Scopes      []string
	ExpiresAt   time.Time
	ConnectedAt time.Time
}

// StartConnect records a single-use state for the provider redirect and
// returns the provider authorize URL. The PKCE verifier is stored
// encrypted with the state.
func (b *Broker) StartConnect(ctx context.Context, userID string, p domain.Platform, redirectAfter string) (string, error) {
	prov, err := b.Provider(p)
	if err != nil {
		return "", err
	}

	state, stateHash, err := cryptox.GenerateOpaque(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()
	verifierCT, err := b.cipher.Encrypt(verifier)
	if err != nil {
		return "", err
	}

	now := b.now()
	if err := b.store.OAuthStates().CreateOAuthState(ctx, domain.OAuthState{
		StateHash:      stateHash,
		Platform:       p,
		UserID:         userID,
		CodeVerifierCT: verifierCT,
		RedirectAfter:  redirectAfter,
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.OAuthStateTTL),
	}); err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Info("platform connect started", "platform", p)
	return prov.oauth2Config().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// CompleteConnect consumes the state exactly once, exchanges the code and
// stores the encrypted tokens. It returns the consumed state so the caller
// can redirect to RedirectAfter.
func (b *Broker) CompleteConnect(ctx context.Context, p domain.Platform, state, code string) (domain.OAuthState, error) {
	l := slogx.FromContext(ctx)

	prov, err := b.Provider(p)
	if err != nil {
		return domain.OAuthState{}, err
	}
	if state == "" || code == "" {
		return domain.OAuthState{}, ErrInvalidState
	}

	st, err := b.store.OAuthStates().ConsumeOAuthState(ctx, cryptox.FingerprintToken(state), b.now())
	if err != nil {
		if errors.Is(err, store.ErrConsumed) {
			return domain.OAuthState{}, ErrInvalidState
		}
		return domain.OAuthState{}, err
	}
	if st.Platform != p {
		return domain.OAuthState{}, ErrInvalidState
	}

	verifier, err := b.cipher.Decrypt(st.CodeVerifierCT)
	if err != nil {
		return domain.OAuthState{}, fmt.Errorf("decrypt code verifier: %w", err)
	}

	tok, err := prov.oauth2Config().Exchange(
		context.WithValue(ctx, oauth2.HTTPClient, b.client),
		code,
		oauth2.VerifierOption(verifier),
	)
	if err != nil {
		l.Warn("platform code exchange failed", "platform", p, "error", err)
		return domain.OAuthState{}, fmt.Errorf("%w: %w", ErrProviderResponse, err)
	}

	accessCT, err := b.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return domain.OAuthState{}, err
	}
	var refreshCT string
	if tok.RefreshToken != "" {
		if refreshCT, err = b.cipher.Encrypt(tok.RefreshToken); err != nil {
			return domain.OAuthState{}, err
		}
	}

	now := b.now()
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultTokenLifetime)
	}
	var scopes []string
	if s, ok := tok.Extra("scope").(string); ok {
		scopes = strings.Fields(s)
	}

	if err := b.store.PlatformConnections().UpsertPlatformConnection(ctx, domain.PlatformConnection{
		ID:             idx.NewAt(idx.PrefixConnection, now).String(),
		UserID:         st.UserID,
		Platform:       p,
		AccessTokenCT:  accessCT,
		RefreshTokenCT: refreshCT,
		ExpiresAt:      expiresAt,
		Scopes:         scopes,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return domain.OAuthState{}, err
	}

	l.Info("platform connected", "platform", p, "user_id", st.UserID, "has_refresh_token", refreshCT != "")
	return st, nil
}

// Disconnect deactivates the link and wipes its tokens.
func (b *Broker) Disconnect(ctx context.Context, userID string, p domain.Platform) error {
	err := b.store.PlatformConnections().DeactivatePlatformConnection(ctx, userID, p, b.now())
	if errors.Is(err, store.ErrNotFound) {
		return reconnect(p, ReasonNotConnected)
	}
	return err
}

// Connections lists the user's active links without tokens.
func (b *Broker) Connections(ctx context.Context, userID string) ([]Connection, error) {
	conns, err := b.store.PlatformConnections().ListPlatformConnections(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if !c.Active {
			continue
		}
		out = append(out, Connection{
			Platform:    c.Platform,
			Scopes:      c.Scopes,
			ExpiresAt:   c.ExpiresAt,
			ConnectedAt: c.CreatedAt,
		})
	}
	return out, nil
}
