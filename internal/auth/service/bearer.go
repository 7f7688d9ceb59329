package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

// BearerAuthenticator resolves an Authorization header into the caller
// behind an access token. It satisfies httpx.Authenticator.
type BearerAuthenticator struct {
	Codec    *jwtx.Codec
	Store    store.Store
	Audience string
	Now      func() time.Time
}

var _ httpx.Authenticator = (*BearerAuthenticator)(nil)

// Authenticate checks, in order: header shape, signature and claims, the
// jti record, and the user. Each step has its own error so clients can
// tell an expired token from a revoked one.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, header string) (httpx.Principal, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return httpx.Principal{}, ErrMissingToken
	}

	claims, err := a.Codec.Verify(raw, jwtx.Expectation{Type: jwtx.TypeAccess, Audience: a.Audience})
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return httpx.Principal{}, ErrExpiredToken
		}
		return httpx.Principal{}, ErrInvalidToken
	}

	rec, err := a.Store.AccessTokens().GetAccessToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Principal{}, ErrRevokedToken
		}
		return httpx.Principal{}, err
	}
	if !rec.Active(clock(a.Now)) {
		return httpx.Principal{}, ErrRevokedToken
	}

	user, err := a.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Principal{}, ErrUserNotFound
		}
		return httpx.Principal{}, err
	}

	return httpx.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ClientID:  claims.ClientID,
		TokenID:   claims.ID,
		Scopes:    claims.Scopes(),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// bearerToken extracts the credential from "Bearer <token>". The scheme
// is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
