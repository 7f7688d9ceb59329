package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expectation states what Verify must find in a token.
type Expectation struct {
	// Type is the required "type" claim. Empty accepts any type.
	Type TokenType

	// Audience must appear in "aud" when set.
	Audience string
}

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string, want Expectation) (Claims, error)
}

// Codec signs with the KeyManager's active key and verifies against its
// KeySet. The clock is injectable so expiry can be tested to the second.
type Codec struct {
	keys   *KeyManager
	issuer string
	now    func() time.Time
}

// NewCodec returns a Codec bound to the issuer URL.
func NewCodec(keys *KeyManager, issuer string) *Codec {
	return &Codec{keys: keys, issuer: issuer, now: time.Now}
}

// WithClock returns a copy of the codec using now for all time checks.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issuer returns the iss value this codec enforces.
func (c *Codec) Issuer() string { return c.issuer }

// Sign serialises claims with the active key.
func (c *Codec) Sign(claims Claims) (string, error) {
	s := c.keys.Signer()
	if s == nil {
		return "", fmt.Errorf("%w: no active signer", ErrKeyConfig)
	}
	return s.Sign(claims)
}

// Verify checks signature, issuer, expiry, audience and token type.
// Expired tokens report ErrExpired; every other failure is one of the
// package error values.
func (c *Codec) Verify(token string, want Expectation) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(supportedAlgorithms),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, c.keyFor)
	if err != nil {
		return Claims{}, classify(err)
	}

	if err := claims.ValidateIssuer(c.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(want.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateType(want.Type); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return Claims{}, fmt.Errorf("%w: sub and jti are required", ErrInvalidClaim)
	}

	return claims, nil
}

var supportedAlgorithms = []string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}

// keyFor resolves the kid first, so a retired key reports ErrUnknownKID,
// and then requires the header alg to be the one that key signs with.
func (c *Codec) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKID)
	}
	pub, err := c.keys.KeySet().Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
	}
	alg, err := algForKey(pub)
	if err != nil {
		return nil, err
	}
	if t.Method.Alg() != alg {
		return nil, fmt.Errorf("%w: %s token for %s key %q", ErrInvalidSig, t.Method.Alg(), alg, kid)
	}
	return pub, nil
}

// classify maps golang-jwt parse errors onto this package's errors.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, ErrInvalidSig):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	default:
		return fmt.Errorf("%w: %w", ErrInvalidClaim, err)
	}
}
