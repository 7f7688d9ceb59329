package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ExchangeAuthorizationCode redeems an authorization code with its PKCE
// verifier. redirectURI must be byte-identical to the authorize request.
func (c *SDKClient) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	})
}

// RefreshGrant requests a new access token using a refresh token. A
// non-empty scope list narrows the grant.
func (c *SDKClient) RefreshGrant(
	ctx context.Context,
	clientID, refreshToken string,
	scopes ...string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if clientID != "" {
		data.Set("client_id", clientID)
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// RevokeToken revokes an access or refresh token (RFC 7009).
func (c *SDKClient) RevokeToken(ctx context.Context, clientID, token string) error {
	resp, err := c.postForm(ctx, PathRevoke, "", url.Values{
		"token":     {token},
		"client_id": {clientID},
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// Introspect asks the server whether token is active (RFC 7662).
func (c *SDKClient) Introspect(ctx context.Context, accessToken, token string) (*IntrospectionResponse, error) {
	resp, err := c.postForm(ctx, PathIntrospect, accessToken, url.Values{"token": {token}})
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the presented access token and its client's refresh tokens.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.postForm(ctx, PathLogout, accessToken, url.Values{})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusNoContent)
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, PathToken, "", data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}
