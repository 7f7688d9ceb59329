package domain

import "time"

const LoginSessionTTL = 12 * time.Hour

// Authentication method references recorded on a login session.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
)

// LoginSession is the server-side record behind the browser session cookie.
type LoginSession struct {
	IDHash    string
	UserID    string
	AMR       []string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s LoginSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
