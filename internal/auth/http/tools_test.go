package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
)

// connectAsana links the test user's Asana account through the browser
// flow and returns the redirect the callback answered with.
func (s *testServer) connectAsana(t *testing.T, redirectAfter string) *http.Response {
	t.Helper()

	c := s.browser(t)
	s.signIn(t, c)

	target := s.srv.URL + "/platforms/asana/connect"
	if redirectAfter != "" {
		target += "?" + url.Values{"redirect_after": {redirectAfter}}.Encode()
	}
	resp, err := c.Get(target)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(authURL.String(), s.asana.srv.URL+"/authorize"))
	q := authURL.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))

	resp, err = c.Get(s.srv.URL + "/platforms/asana/callback?" + url.Values{
		"state": {q.Get("state")},
		"code":  {"abc"},
	}.Encode())
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestToolsWhoami(t *testing.T) {
	s := newTestServer(t)
	tok := s.tokens(t, "openid", "email")

	res, err := s.sdk.InvokeTool(context.Background(), tok.AccessToken, "whoami", nil)
	require.NoError(t, err)
	require.Equal(t, "whoami", res.Tool)

	out, ok := res.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, s.user.ID, out["sub"])
	require.Equal(t, testClientID, out["client_id"])
}

func TestToolsErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tok := s.tokens(t, "openid")

	_, err := s.sdk.InvokeTool(ctx, tok.AccessToken, "rm_rf", nil)
	requireOAuthError(t, err, authsdk.ErrorCodeUnknownTool)

	_, err = s.sdk.InvokeTool(ctx, tok.AccessToken, "asana_me", nil)
	oe := requireOAuthError(t, err, authsdk.ErrorCodeInsufficientScope)
	require.Equal(t, http.StatusForbidden, oe.StatusCode)

	resp := s.do(t, http.MethodPost, authsdk.PathTools+"whoami", tok.AccessToken, strings.NewReader("{not json"), "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, authsdk.PathTools+"whoami", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPlatformToolNeedsConnection(t *testing.T) {
	s := newTestServer(t)
	tok := s.tokens(t, "openid", "tasks:read")

	_, err := s.sdk.InvokeTool(context.Background(), tok.AccessToken, "asana_me", nil)
	var rr *authsdk.ReconnectRequiredError
	require.True(t, errors.As(err, &rr), "want reconnect_required, got %v", err)
	require.Equal(t, "asana", rr.Platform)
	require.Equal(t, testIssuer+"/platforms/asana/connect", rr.ConnectURL)
}

func TestDisabledPlatform(t *testing.T) {
	s := newTestServer(t)
	tok := s.tokens(t, "openid", "meetings:read")

	_, err := s.sdk.InvokeTool(context.Background(), tok.AccessToken, "zoom_me", nil)
	oe := requireOAuthError(t, err, authsdk.ErrorCodeInvalidRequest)
	require.Equal(t, http.StatusNotFound, oe.StatusCode)
}

func TestPlatformConnectAndUse(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp := s.connectAsana(t, "/done")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/done", resp.Header.Get("Location"))

	tok := s.tokens(t, "openid", "profile", "tasks:read")

	res, err := s.sdk.InvokeTool(ctx, tok.AccessToken, "asana_me", nil)
	require.NoError(t, err)
	data := res.Result.(map[string]any)["data"].(map[string]any)
	require.Equal(t, "42", data["gid"])

	conns, err := s.sdk.ListConnections(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Len(t, conns.Connections, 1)
	require.Equal(t, "asana", conns.Connections[0].Platform)
	require.False(t, conns.Connections[0].ExpiresAt.IsZero())

	res, err = s.sdk.InvokeTool(ctx, tok.AccessToken, "list_connections", nil)
	require.NoError(t, err)
	require.Len(t, res.Result.(map[string]any)["connections"], 1)

	resp = s.do(t, http.MethodDelete, authsdk.PathPlatforms+"/asana", tok.AccessToken, nil, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, authsdk.PathPlatforms+"/asana", tok.AccessToken, nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = s.sdk.InvokeTool(ctx, tok.AccessToken, "asana_me", nil)
	var rr *authsdk.ReconnectRequiredError
	require.True(t, errors.As(err, &rr))

	conns, err = s.sdk.ListConnections(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Empty(t, conns.Connections)
}

func TestPlatformCallbackWithoutRedirect(t *testing.T) {
	s := newTestServer(t)

	resp := s.connectAsana(t, "https://evil.example/phish")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[map[string]string](t, resp)
	require.Equal(t, "connected", out["status"])
}

func TestPlatformConnectErrors(t *testing.T) {
	s := newTestServer(t)
	c := s.browser(t)

	t.Run("no session redirects to login", func(t *testing.T) {
		resp, err := c.Get(s.srv.URL + "/platforms/asana/connect")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)

		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, authsdk.PathLogin, loc.Path)
		require.Equal(t, "/platforms/asana/connect", loc.Query().Get("return_to"))
	})

	t.Run("unknown platform", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/platforms/myspace/connect", "", nil, "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown state", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/platforms/asana/callback?state=forged&code=abc", "", nil, "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, authsdk.ErrorCodeInvalidState, decodeBody[authsdk.ErrorResponse](t, resp).Error)
	})

	t.Run("provider declined", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/platforms/asana/callback?error=access_denied&state=x", "", nil, "")
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestPlatformStateIsSingleUse(t *testing.T) {
	s := newTestServer(t)
	c := s.browser(t)
	s.signIn(t, c)

	resp, err := c.Get(s.srv.URL + "/platforms/asana/connect")
	require.NoError(t, err)
	resp.Body.Close()
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	callback := s.srv.URL + "/platforms/asana/callback?" + url.Values{
		"state": {authURL.Query().Get("state")},
		"code":  {"abc"},
	}.Encode()

	resp, err = c.Get(callback)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = c.Get(callback)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 1, s.asana.codeExchanges())
}
