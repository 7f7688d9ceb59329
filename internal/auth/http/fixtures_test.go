package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/taskbridge/internal/broker"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

const (
	testIssuer   = "http://auth.test"
	testAudience = "http://api.test"
	testEmail    = "alice@example.com"
	testPassword = "correct horse battery staple"
	testClientID = "agent"
	testRedirect = "https://agent.example/cb"
)

// fakeAsana issues tokens for any authorization code and serves
// /api/users/me to the current access token.
type fakeAsana struct {
	srv *httptest.Server

	mu          sync.Mutex
	accessToken string
	codes       int
}

func newFakeAsana(t *testing.T) *fakeAsana {
	t.Helper()

	f := &fakeAsana{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
			return
		}
		f.mu.Lock()
		f.codes++
		f.accessToken = "asana-at-" + r.PostForm.Get("code")
		at := f.accessToken
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  at,
			"refresh_token": "asana-rt",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		at := f.accessToken
		f.mu.Unlock()
		if at == "" || r.Header.Get("Authorization") != "Bearer "+at {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"gid":"42","email":"alice@example.com"}}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAsana) codeExchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes
}

// testClock follows the wall clock shifted by whatever Advance added.
type testClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

type testServer struct {
	clock  *testClock
	srv    *httptest.Server
	sdk    *authsdk.SDKClient
	router *Router
	store  *sqlite.Store
	user   domain.User
	asana  *fakeAsana
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.AlgorithmES256)
	require.NoError(t, err)
	clk := &testClock{}
	codec := jwtx.NewCodec(km, testIssuer).WithClock(clk.Now)
	passwords := cryptox.NewPasswordHasher("pepper")

	cipher, err := cryptox.NewTokenCipher([]byte(strings.Repeat("k", cryptox.TokenKeySize)))
	require.NoError(t, err)

	asana := newFakeAsana(t)
	b, err := broker.New(broker.Options{
		Store:  st,
		Cipher: cipher,
		Providers: []broker.Provider{{
			Platform:    domain.PlatformAsana,
			Credentials: broker.Credentials{ClientID: "tb", ClientSecret: "tb-secret"},
			RedirectURI: testIssuer + "/platforms/asana/callback",
			AuthURL:     asana.srv.URL + "/authorize",
			TokenURL:    asana.srv.URL + "/token",
			APIBaseURL:  asana.srv.URL + "/api",
		}},
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(km.KeySet(), testIssuer, "test", st, logger)
	codes := &service.CodeIssuer{Store: st, Now: clk.Now}
	r.AuthorizeService = &service.AuthorizeService{Store: st, Now: clk.Now}
	r.ConsentService = &service.ConsentService{Store: st, Codes: codes, Now: clk.Now}
	r.LoginService = &service.LoginService{Store: st, Passwords: passwords, Now: clk.Now}
	r.TokenService = &service.TokenService{Store: st, Codec: codec, Passwords: passwords, Audience: testAudience, Now: clk.Now}
	r.UserService = &service.UserService{Store: st, Passwords: passwords, Now: clk.Now}
	r.MFAService = &service.MFAService{Store: st, Issuer: "TaskBridge"}
	r.Bearer = &service.BearerAuthenticator{Codec: codec, Store: st, Audience: testAudience, Now: clk.Now}
	r.Broker = b
	r.ApplyRoutes()

	user, err := r.UserService.CreateUser(ctx, service.NewUser{
		Email:         testEmail,
		Name:          "Alice",
		EmailVerified: true,
		Password:      testPassword,
	})
	require.NoError(t, err)

	clients := &service.ClientService{Store: st, Passwords: passwords}
	_, _, err = clients.CreateClient(ctx, service.NewClient{
		ID:           testClientID,
		Name:         "Agent",
		RedirectURIs: []string{testRedirect},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{clock: clk, srv: srv, sdk: authsdk.NewSDKClient(srv.URL), router: r, store: st, user: user, asana: asana}
}

// authorize runs the browser leg and returns the code and PKCE verifier.
func (s *testServer) authorize(t *testing.T, scopes ...string) (code, verifier string) {
	t.Helper()

	pkce := authsdk.GeneratePKCEChallenge()
	res, err := s.sdk.AuthorizeWithPassword(context.Background(), authsdk.AuthorizeParams{
		ClientID:    testClientID,
		RedirectURI: testRedirect,
		State:       "st-1",
		Nonce:       "n-1",
		Scopes:      scopes,
		PKCE:        pkce,
	}, authsdk.Credentials{Email: testEmail, Password: testPassword}, true)
	require.NoError(t, err)
	require.Equal(t, "st-1", res.State)
	return res.Code, pkce.Verifier
}

// tokens runs the whole authorization code flow.
func (s *testServer) tokens(t *testing.T, scopes ...string) *authsdk.TokenResponse {
	t.Helper()

	code, verifier := s.authorize(t, scopes...)
	tok, err := s.sdk.ExchangeAuthorizationCode(context.Background(), testClientID, code, testRedirect, verifier)
	require.NoError(t, err)
	return tok
}

// browser is a cookie-keeping client that does not follow redirects.
func (s *testServer) browser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// signIn posts the login form without a pending request, leaving the
// session cookie in the client's jar.
func (s *testServer) signIn(t *testing.T, c *http.Client) {
	t.Helper()

	resp, err := c.PostForm(s.srv.URL+authsdk.PathLogin, url.Values{
		"email":    {testEmail},
		"password": {testPassword},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// do sends a request with an optional bearer token.
func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, s.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
