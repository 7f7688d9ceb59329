package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// errRefreshReuse marks a rotated refresh token being presented again. The
// token family is revoked after the failed transaction rolls back.
var errRefreshReuse = errors.New("refresh token reuse")

type TokenService struct {
	Store     store.Store
	Codec     *jwtx.Codec
	Passwords *cryptox.PasswordHasher

	// Audience is the resource-server identifier placed in access tokens.
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	IDTokenTTL time.Duration

	// RotateRefreshTokens issues a new refresh token on every refresh and
	// revokes the presented one. Off by default.
	RotateRefreshTokens bool
	AllowPlainPKCE      bool

	Now func() time.Time
}

// AuthorizationCodeGrant carries the authorization_code grant parameters.
type AuthorizationCodeGrant struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// RefreshGrant carries the refresh_token grant parameters. ClientID is
// optional for public clients.
type RefreshGrant struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scopes       []string
}

// Introspection is the RFC 7662 view of a token.
type Introspection struct {
	Active    bool
	TokenType jwtx.TokenType
	Claims    jwtx.Claims
}

// ExchangeAuthorizationCode implements the OAuth2 authorization_code grant.
//
// The code must exist, be unused and unexpired, belong to the client, be
// presented with the exact redirect_uri it was issued for and pass PKCE.
// Marking it used is a conditional update inside the same transaction that
// writes the token records, so of two concurrent exchanges only one wins.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, g AuthorizationCodeGrant) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	clientID := strings.TrimSpace(g.ClientID)
	code := strings.TrimSpace(g.Code)
	redirectURI := strings.TrimSpace(g.RedirectURI)
	verifier := strings.TrimSpace(g.CodeVerifier)
	if clientID == "" || code == "" || redirectURI == "" || verifier == "" {
		return nil, fmt.Errorf("%w: code, redirect_uri, client_id and code_verifier are required", ErrInvalidRequest)
	}

	client, err := s.authenticateClient(ctx, clientID, g.ClientSecret)
	if err != nil {
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, cryptox.FingerprintToken(code))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: unknown authorization code", ErrInvalidGrant)
			}
			return err
		}

		switch {
		case authCode.Redeemed():
			l.Warn("authorization code replayed", slog.String("client_id", client.ID))
			return fmt.Errorf("%w: authorization code already used", ErrInvalidGrant)
		case authCode.Expired(now):
			return fmt.Errorf("%w: authorization code expired", ErrInvalidGrant)
		case !authCode.IssuedTo(client.ID, redirectURI):
			return fmt.Errorf("%w: authorization code was issued to another client or redirect_uri", ErrInvalidGrant)
		case !cryptox.VerifyPKCE(authCode.CodeChallenge, authCode.CodeChallengeMethod, verifier, s.AllowPlainPKCE):
			return fmt.Errorf("%w: code_verifier does not match", ErrInvalidGrant)
		}

		if err := tx.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, authCode.ID, now); err != nil {
			if errors.Is(err, store.ErrConsumed) {
				return fmt.Errorf("%w: authorization code already used", ErrInvalidGrant)
			}
			return err
		}

		user, err := tx.Users().GetUserByID(ctx, authCode.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: user no longer exists", ErrInvalidGrant)
			}
			return err
		}

		pair, err = s.mint(ctx, tx, now, user, client.ID, authCode.Scopes, mintOptions{
			nonce:       authCode.Nonce,
			withRefresh: true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("authorization code exchanged", "client_id", client.ID, "scope", pair.Scope)
	return pair, nil
}

// ExchangeRefreshToken implements the OAuth2 refresh_token grant.
//
// The refresh JWT must verify and its jti record must be present, unrevoked
// and unexpired. Requested scopes narrow the original grant and anything
// outside it is dropped. A request sharing nothing with the grant gets
// the original grant back.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, g RefreshGrant) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	raw := strings.TrimSpace(g.RefreshToken)
	if raw == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	claims, err := s.Codec.Verify(raw, jwtx.Expectation{Type: jwtx.TypeRefresh})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
	}
	if g.ClientID != "" && g.ClientID != claims.ClientID {
		return nil, fmt.Errorf("%w: refresh token was issued to another client", ErrInvalidGrant)
	}

	client, err := s.authenticateClient(ctx, claims.ClientID, g.ClientSecret)
	if err != nil {
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.RefreshTokens().GetRefreshToken(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: unknown refresh token", ErrInvalidGrant)
			}
			return err
		}

		if rec.RevokedAt != nil {
			if s.RotateRefreshTokens {
				return errRefreshReuse
			}
			return fmt.Errorf("%w: refresh token revoked", ErrInvalidGrant)
		}
		if !now.Before(rec.ExpiresAt) {
			return fmt.Errorf("%w: refresh token expired", ErrInvalidGrant)
		}
		if rec.ClientID != client.ID || rec.UserID != claims.Subject {
			return fmt.Errorf("%w: refresh token does not match its record", ErrInvalidGrant)
		}

		// Scopes outside the original grant are dropped. When nothing is
		// left the original grant is reissued, as if scope were omitted.
		scopes := rec.Scopes
		if narrowed := domain.IntersectScopes(g.Scopes, rec.Scopes); len(narrowed) > 0 {
			scopes = narrowed
		} else if len(g.Scopes) > 0 {
			l.Info("refresh scope disjoint from grant, keeping original", "client_id", client.ID, "requested", strings.Join(g.Scopes, " "))
		}

		user, err := tx.Users().GetUserByID(ctx, rec.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: user no longer exists", ErrInvalidGrant)
			}
			return err
		}

		if s.RotateRefreshTokens {
			if err := tx.RefreshTokens().RotateRefreshToken(ctx, rec.JTI, now); err != nil {
				if errors.Is(err, store.ErrConsumed) {
					return errRefreshReuse
				}
				return err
			}
			pair, err = s.mint(ctx, tx, now, user, client.ID, scopes, mintOptions{
				withRefresh:    true,
				refreshScopes:  rec.Scopes,
				parentJTI:      rec.JTI,
				refreshExpires: rec.ExpiresAt,
			})
			return err
		}

		if err := tx.RefreshTokens().TouchRefreshToken(ctx, rec.JTI, now); err != nil {
			return err
		}
		pair, err = s.mint(ctx, tx, now, user, client.ID, scopes, mintOptions{})
		if err != nil {
			return err
		}
		// Without rotation the client keeps using the token it presented.
		pair.RefreshToken = raw
		return nil
	})

	if errors.Is(err, errRefreshReuse) {
		n, rerr := s.Store.RefreshTokens().RevokeRefreshTokenFamily(ctx, claims.ID, now)
		if rerr != nil {
			l.Error("failed to revoke refresh token family", "error", rerr)
		}
		l.Warn("refresh token reuse detected", "client_id", claims.ClientID, "revoked", n)
		return nil, fmt.Errorf("%w: refresh token already used", ErrInvalidGrant)
	}
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Revoke implements RFC 7009. Unknown, malformed and foreign tokens are
// ignored so the endpoint always answers 200.
func (s *TokenService) Revoke(ctx context.Context, token, clientID string) error {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	claims, err := s.Codec.Verify(strings.TrimSpace(token), jwtx.Expectation{})
	if err != nil {
		l.Debug("revoke: ignoring unverifiable token", "error", err)
		return nil
	}
	if clientID != "" && clientID != claims.ClientID {
		l.Warn("revoke: token belongs to another client", "client_id", clientID)
		return nil
	}

	switch claims.Type {
	case jwtx.TypeAccess:
		err = s.Store.AccessTokens().RevokeAccessToken(ctx, claims.ID, now)
	case jwtx.TypeRefresh:
		_, err = s.Store.RefreshTokens().RevokeRefreshTokenFamily(ctx, claims.ID, now)
	default:
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	l.Info("token revoked", "type", claims.Type, "client_id", claims.ClientID)
	return nil
}

// Logout revokes the presenting access token and every refresh token the
// user holds for that client.
func (s *TokenService) Logout(ctx context.Context, p httpx.Principal) error {
	now := clock(s.Now)
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AccessTokens().RevokeAccessToken(ctx, p.TokenID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		_, err := tx.RefreshTokens().RevokeUserClientRefreshTokens(ctx, p.UserID, p.ClientID, now)
		return err
	})
}

// Introspect implements RFC 7662 for access and refresh tokens. A token
// is active only if it verifies and its record is live.
func (s *TokenService) Introspect(ctx context.Context, token string) (Introspection, error) {
	now := clock(s.Now)

	claims, err := s.Codec.Verify(strings.TrimSpace(token), jwtx.Expectation{})
	if err != nil {
		return Introspection{}, nil
	}

	var active bool
	switch claims.Type {
	case jwtx.TypeAccess:
		rec, err := s.Store.AccessTokens().GetAccessToken(ctx, claims.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Introspection{}, err
		}
		active = err == nil && rec.Active(now)
	case jwtx.TypeRefresh:
		rec, err := s.Store.RefreshTokens().GetRefreshToken(ctx, claims.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Introspection{}, err
		}
		active = err == nil && rec.Active(now)
	}
	if !active {
		return Introspection{}, nil
	}

	return Introspection{Active: true, TokenType: claims.Type, Claims: claims}, nil
}

// authenticateClient loads the client; confidential clients must present
// their secret.
func (s *TokenService) authenticateClient(ctx context.Context, clientID, secret string) (domain.Client, error) {
	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}

	if client.IsConfidential() {
		if secret == "" || s.Passwords.Verify(secret, client.SecretHash) != nil {
			slogx.FromContext(ctx).Info("client authentication failed", slog.String("client_id", clientID))
			return domain.Client{}, ErrInvalidClient
		}
	}
	return client, nil
}

type mintOptions struct {
	nonce       string
	withRefresh bool

	// Rotation keeps the original grant and expiry on the new refresh token.
	refreshScopes  []string
	parentJTI      string
	refreshExpires time.Time
}

// mint signs the token set for a grant and writes the revocation records
// before anything is returned to the client.
func (s *TokenService) mint(
	ctx context.Context,
	tx store.Store,
	now time.Time,
	user domain.User,
	clientID string,
	scopes []string,
	opts mintOptions,
) (*domain.TokenPair, error) {
	issuer := s.Codec.Issuer()
	accessTTL := orDefault(s.AccessTTL, jwtx.AccessTokenTTL)

	access := jwtx.NewAccessClaims(issuer, s.Audience, user.ID, clientID, scopes, now, accessTTL)
	accessToken, err := s.Codec.Sign(access)
	if err != nil {
		return nil, err
	}
	if err := tx.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		JTI:       access.ID,
		ClientID:  clientID,
		UserID:    user.ID,
		Scopes:    scopes,
		ExpiresAt: access.ExpiresAt.Time,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	pair := &domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   accessTTL,
		Scope:       domain.FormatScope(scopes),
	}

	if opts.withRefresh {
		refreshScopes := scopes
		if len(opts.refreshScopes) > 0 {
			refreshScopes = opts.refreshScopes
		}
		ttl := orDefault(s.RefreshTTL, jwtx.RefreshTokenTTL)
		if !opts.refreshExpires.IsZero() {
			ttl = opts.refreshExpires.Sub(now)
		}

		refresh := jwtx.NewRefreshClaims(issuer, user.ID, clientID, refreshScopes, now, ttl)
		pair.RefreshToken, err = s.Codec.Sign(refresh)
		if err != nil {
			return nil, err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			JTI:       refresh.ID,
			ParentJTI: opts.parentJTI,
			ClientID:  clientID,
			UserID:    user.ID,
			Scopes:    refreshScopes,
			ExpiresAt: refresh.ExpiresAt.Time,
			CreatedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	if slices.Contains(scopes, domain.ScopeOpenID) {
		pair.IDToken, err = s.Codec.Sign(jwtx.NewIDClaims(issuer, clientID, ProfileFor(user, scopes), opts.nonce, now,
			orDefault(s.IDTokenTTL, jwtx.IDTokenTTL)))
		if err != nil {
			return nil, err
		}
	}

	return pair, nil
}

// ProfileFor releases the OIDC claims the scopes allow: email and
// email_verified for email, name and picture for profile.
func ProfileFor(u domain.User, scopes []string) jwtx.Profile {
	p := jwtx.Profile{Subject: u.ID}
	if slices.Contains(scopes, domain.ScopeEmail) {
		p.Email = u.Email
		p.EmailVerified = u.EmailVerified
	}
	if slices.Contains(scopes, domain.ScopeProfile) {
		p.Name = u.Name
		p.Picture = u.Picture
	}
	return p
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
