package domain

import "time"

// AuthorizationCodeTTL is how long an issued code may be redeemed.
const AuthorizationCodeTTL = 10 * time.Minute

// AuthorizationCode is a single-use grant bound to the client, redirect
// URI and PKCE challenge of the request that produced it. Only the
// fingerprint of the raw code is stored.
type AuthorizationCode struct {
	ID                  string
	CodeHash            string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	UsedAt              *time.Time
}

// Redeemed reports whether the code was already exchanged. A second
// exchange is a replay.
func (c AuthorizationCode) Redeemed() bool { return c.UsedAt != nil }

func (c AuthorizationCode) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// IssuedTo reports whether clientID and redirectURI match the ones the
// code was issued for.
func (c AuthorizationCode) IssuedTo(clientID, redirectURI string) bool {
	return c.ClientID == clientID && c.RedirectURI == redirectURI
}
