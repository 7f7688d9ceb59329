package service

import (
	"context"
	"net/url"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/idx"
)

// CodeIssuer mints single-use authorization codes bound to the PKCE
// challenge, nonce and exact redirect_uri of the request they answer.
type CodeIssuer struct {
	Store store.Store
	TTL   time.Duration
	Now   func() time.Time
}

// Issue stores a new code for userID and returns the client redirect
// carrying code and state.
func (c *CodeIssuer) Issue(ctx context.Context, userID string, req domain.AuthorizationRequest) (string, error) {
	return c.issue(ctx, c.Store.AuthorizationCodes(), userID, req)
}

func (c *CodeIssuer) issue(ctx context.Context, codes store.AuthorizationCodes, userID string, req domain.AuthorizationRequest) (string, error) {
	raw, hash, err := cryptox.GenerateOpaque(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = domain.AuthorizationCodeTTL
	}

	now := clock(c.Now)
	record := domain.AuthorizationCode{
		ID:                  idx.NewAt(idx.PrefixCode, now).String(),
		CodeHash:            hash,
		ClientID:            req.ClientID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
	if err := codes.CreateAuthorizationCode(ctx, record); err != nil {
		return "", err
	}

	return buildRedirect(req.RedirectURI, url.Values{
		"code":  {raw},
		"state": {req.State},
	}), nil
}
