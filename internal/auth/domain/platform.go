package domain

import (
	"errors"
	"time"
)

// Platform is the closed set of third-party providers the broker talks to.
type Platform string

const (
	PlatformZoom  Platform = "zoom"
	PlatformAsana Platform = "asana"
)

var ErrUnknownPlatform = errors.New("domain: unknown platform")

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{PlatformZoom, PlatformAsana}
}

func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformZoom, PlatformAsana:
		return p, nil
	default:
		return "", ErrUnknownPlatform
	}
}

func (p Platform) String() string { return string(p) }

// PlatformConnection is a user's stored link to a platform. Token columns
// hold TokenCipher ciphertext only.
type PlatformConnection struct {
	ID             string
	UserID         string
	Platform       Platform
	AccessTokenCT  string
	RefreshTokenCT string // empty when the provider issued no refresh token
	ExpiresAt      time.Time
	Scopes         []string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OAuthState tracks an in-flight connect redirect to a platform.
const OAuthStateTTL = 10 * time.Minute

type OAuthState struct {
	StateHash      string
	Platform       Platform
	UserID         string
	CodeVerifierCT string
	RedirectAfter  string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UsedAt         *time.Time
}
