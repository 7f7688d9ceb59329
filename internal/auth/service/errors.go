package service

import (
	"errors"
	"time"
)

var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrAccessDenied            = errors.New("access_denied")

	// Login errors
	ErrLoginRequired      = errors.New("login_required")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrMFARequired        = errors.New("mfa_required")

	// Bearer authentication errors, most specific first.
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
	ErrExpiredToken = errors.New("expired_token")
	ErrRevokedToken = errors.New("revoked_token")
	ErrUserNotFound = errors.New("user_not_found")
)

// AuthorizeError is a failure of an authorization request. When
// RedirectURI is set the redirect target has been trusted and the error
// is delivered to it; otherwise it must be rendered as JSON.
type AuthorizeError struct {
	Err         error
	Description string
	RedirectURI string
	State       string
}

func (e *AuthorizeError) Error() string {
	if e.Description == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Description
}

func (e *AuthorizeError) Unwrap() error { return e.Err }

// Redirectable reports whether the error may be sent to the client's redirect_uri.
func (e *AuthorizeError) Redirectable() bool { return e.RedirectURI != "" }

// clock returns now() or time.Now when nil. Services take an injectable
// clock so expiry boundaries can be tested exactly.
func clock(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}
