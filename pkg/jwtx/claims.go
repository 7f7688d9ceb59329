package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is carried in the "type" claim so one token can never be
// replayed in place of another.
type TokenType string

const (
	TypeAccess  TokenType = "access_token"
	TypeRefresh TokenType = "refresh_token"
	TypeID      TokenType = "id_token"
)

// Default lifetimes.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	IDTokenTTL      = time.Hour
)

// Claims is the single claim set used by every token this service mints.
// Fields that do not apply to a token type are left empty and omitted.
type Claims struct {
	jwt.RegisteredClaims

	Type TokenType `json:"type"`

	// Scope is space-delimited, as in RFC 6749.
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	// OpenID Connect profile claims, id_token only.
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
}

// Profile is the OIDC identity embedded into an id_token.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// NewAccessClaims builds claims for a bearer access token.
func NewAccessClaims(issuer, audience, subject, clientID string, scopes []string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: registered(issuer, subject, now, ttl, audience),
		Type:             TypeAccess,
		Scope:            strings.Join(scopes, " "),
		ClientID:         clientID,
	}
}

// NewRefreshClaims builds claims for a refresh token. Refresh tokens carry
// no audience; they are only ever presented back to the issuer.
func NewRefreshClaims(issuer, subject, clientID string, scopes []string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: registered(issuer, subject, now, ttl),
		Type:             TypeRefresh,
		Scope:            strings.Join(scopes, " "),
		ClientID:         clientID,
	}
}

// NewIDClaims builds an OpenID Connect id_token addressed to clientID.
// Callers decide which profile fields the granted scopes release.
func NewIDClaims(issuer, clientID string, p Profile, nonce string, now time.Time, ttl time.Duration) Claims {
	c := Claims{
		RegisteredClaims: registered(issuer, p.Subject, now, ttl, clientID),
		Type:             TypeID,
		Email:            p.Email,
		Name:             p.Name,
		Picture:          p.Picture,
		Nonce:            nonce,
	}
	if p.Email != "" {
		verified := p.EmailVerified
		c.EmailVerified = &verified
	}
	return c
}

func registered(issuer, subject string, now time.Time, ttl time.Duration, audience ...string) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
	if len(audience) > 0 {
		rc.Audience = jwt.ClaimStrings(audience)
	}
	return rc
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Scopes splits the space-delimited scope claim.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that expected is one of the token audiences.
func (c *Claims) ValidateAudience(expected string) error {
	if expected == "" {
		return nil
	}
	if slices.Contains(c.Audience, expected) {
		return nil
	}
	return ErrAudience
}

// ValidateType checks the "type" claim.
func (c *Claims) ValidateType(expected TokenType) error {
	if expected == "" {
		return nil
	}
	if c.Type != expected {
		return ErrTokenType
	}
	return nil
}
