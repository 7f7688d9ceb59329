package broker

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

var (
	// ErrUnauthorizedAfterRefresh is returned when the provider still
	// answers 401 after a successful refresh. It is not retried again.
	ErrUnauthorizedAfterRefresh = errors.New("broker: unauthorized after refresh")

	// ErrRefreshFailed covers transport errors, timeouts and unexpected
	// provider responses during a refresh.
	ErrRefreshFailed = errors.New("broker: token refresh failed")

	ErrInvalidState       = errors.New("broker: invalid or expired connect state")
	ErrPlatformNotEnabled = errors.New("broker: platform is not configured")
	ErrProviderResponse   = errors.New("broker: unexpected provider response")
)

// Reasons carried by ReconnectRequiredError.
const (
	ReasonNotConnected        = "not_connected"
	ReasonMissingRefreshToken = "missing_refresh_token"
	ReasonInvalidGrant        = "invalid_grant"
)

// ReconnectRequiredError means the stored connection can no longer be
// used and the user has to go through the connect flow again.
type ReconnectRequiredError struct {
	Platform domain.Platform
	Reason   string
}

func (e *ReconnectRequiredError) Error() string {
	return fmt.Sprintf("broker: %s reconnect required: %s", e.Platform, e.Reason)
}

func reconnect(p domain.Platform, reason string) error {
	return &ReconnectRequiredError{Platform: p, Reason: reason}
}

// IsReconnectRequired reports whether err asks the user to reconnect.
func IsReconnectRequired(err error) (*ReconnectRequiredError, bool) {
	var rr *ReconnectRequiredError
	if errors.As(err, &rr) {
		return rr, true
	}
	return nil, false
}
