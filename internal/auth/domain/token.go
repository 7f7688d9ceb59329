package domain

import "time"

// TokenPair represents what the token endpoint returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string // empty when no refresh token was minted
	IDToken      string // present only when openid was granted
	TokenType    string
	ExpiresIn    time.Duration
	Scope        string // space-delimited
}

// AccessToken is the server-side record of an issued access JWT, keyed by jti.
type AccessToken struct {
	JTI       string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (t AccessToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// RefreshToken models the stored refresh token record. ParentJTI links a
// rotated token to the one it replaced.
type RefreshToken struct {
	JTI        string
	ParentJTI  string
	ClientID   string
	UserID     string
	Scopes     []string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
