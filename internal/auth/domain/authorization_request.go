package domain

import "time"

const AuthorizationRequestTTL = 10 * time.Minute

// AuthorizationRequest is a validated /oauth/authorize call waiting for the
// user to log in and consent. It is addressed by an opaque id whose
// fingerprint is the primary key.
type AuthorizationRequest struct {
	IDHash              string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	ConsumedAt          *time.Time
}

func (r AuthorizationRequest) Pending(now time.Time) bool {
	return r.ConsumedAt == nil && now.Before(r.ExpiresAt)
}
