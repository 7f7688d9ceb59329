package jwtx

import "errors"

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrTokenType    = errors.New("jwtx: token type mismatch")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")

	// ErrKeyConfig wraps every failure to load signing material. It is a
	// configuration problem and is surfaced at startup.
	ErrKeyConfig = errors.New("jwtx: signing key configuration")
)
