package domain

import "time"

type User struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
	PasswordHash  string  // argon2id PHC string
	MFASecret     *string // TOTP secret (nullable, base32 encoded)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MFAEnabled reports whether login requires a TOTP code.
func (u User) MFAEnabled() bool {
	return u.MFASecret != nil && *u.MFASecret != ""
}
