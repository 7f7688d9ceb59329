package domain

import "time"

// Consent records the scopes a user has approved for a client.
type Consent struct {
	UserID      string
	ClientID    string
	Scopes      []string
	ConsentedAt time.Time
	RevokedAt   *time.Time
}

// Covers reports whether an unrevoked consent already grants every scope
// in requested.
func (c Consent) Covers(requested []string) bool {
	if c.RevokedAt != nil {
		return false
	}
	return ContainsAllScopes(c.Scopes, requested)
}
