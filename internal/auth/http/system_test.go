package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
)

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestTOTPLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tok := s.tokens(t, "openid")

	resp := s.do(t, http.MethodPost, "/v1/mfa/totp/enroll", tok.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	enroll := decodeBody[authsdk.TOTPEnrollResponse](t, resp)
	require.NotEmpty(t, enroll.Secret)
	require.Contains(t, enroll.URL, "otpauth://totp/")

	resp = s.do(t, http.MethodPost, "/v1/mfa/totp/confirm", tok.AccessToken,
		jsonBody(t, authsdk.TOTPConfirmRequest{Secret: enroll.Secret, Code: "abcdef"}), "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	resp = s.do(t, http.MethodPost, "/v1/mfa/totp/confirm", tok.AccessToken,
		jsonBody(t, authsdk.TOTPConfirmRequest{Secret: enroll.Secret, Code: code}), "application/json")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/mfa/totp/enroll", tok.AccessToken, nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	params := authsdk.AuthorizeParams{
		ClientID:    testClientID,
		RedirectURI: testRedirect,
		Scopes:      []string{"openid"},
		PKCE:        authsdk.GeneratePKCEChallenge(),
	}
	_, err = s.sdk.AuthorizeWithPassword(ctx, params, authsdk.Credentials{Email: testEmail, Password: testPassword}, true)
	requireOAuthError(t, err, authsdk.ErrorCodeMFARequired)

	code, err = totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	_, err = s.sdk.AuthorizeWithPassword(ctx, params, authsdk.Credentials{Email: testEmail, Password: testPassword, OTP: code}, true)
	require.NoError(t, err)

	resp = s.do(t, http.MethodDelete, "/v1/mfa/totp", tok.AccessToken,
		jsonBody(t, authsdk.TOTPRemoveRequest{Code: "abcdef"}), "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, err = totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	resp = s.do(t, http.MethodDelete, "/v1/mfa/totp", tok.AccessToken,
		jsonBody(t, authsdk.TOTPRemoveRequest{Code: code}), "application/json")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = s.sdk.AuthorizeWithPassword(ctx, params, authsdk.Credentials{Email: testEmail, Password: testPassword}, true)
	require.NoError(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, authsdk.PathLivez, "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ready, err := s.sdk.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "test", ready.Version)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
	require.Empty(t, ready.Checks.Lock)
}

func TestReadyzReportsLeaseStore(t *testing.T) {
	s := newTestServer(t)

	h := ReadyzHandler(time.Now(), "test", s.store, s.router.keys, func(context.Context) error {
		return errors.New("connection refused")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, authsdk.PathReadyz, nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var out authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Equal(t, "degraded", out.Status)
	require.Equal(t, "error: connection refused", out.Checks.Lock)
}

func TestSwaggerIsServed(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/swagger/doc.json", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Contains(t, doc["paths"], "/oauth/token")
}
