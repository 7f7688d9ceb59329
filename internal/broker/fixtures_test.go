package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/idx"
)

const (
	testClientID     = "tb-client"
	testClientSecret = "tb-secret"
	testUserID       = "usr_broker_test"
)

// fakePlatform is a provider token endpoint plus a /users/me API. Only
// the most recently issued access token is accepted by the API.
type fakePlatform struct {
	platform domain.Platform
	srv      *httptest.Server

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	rotate       bool
	invalidGrant bool
	always401    bool
	delay        time.Duration
	seq          int

	refreshes atomic.Int32
	apiCalls  atomic.Int32

	// expectChallenge is the PKCE challenge sent to /authorize.
	expectChallenge string
}

func newFakePlatform(t *testing.T, p domain.Platform) *fakePlatform {
	t.Helper()

	f := &fakePlatform{platform: p, accessToken: "at-0", refreshToken: "rt-0"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("GET /api/users/me", f.handleMe)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePlatform) provider() Provider {
	return Provider{
		Platform:    f.platform,
		Credentials: Credentials{ClientID: testClientID, ClientSecret: testClientSecret},
		RedirectURI: "https://taskbridge.test/platforms/" + string(f.platform) + "/callback",
		AuthURL:     f.srv.URL + "/authorize",
		TokenURL:    f.srv.URL + "/token",
		APIBaseURL:  f.srv.URL + "/api",
	}
}

// checkClientAuth enforces the platform's credential placement.
func (f *fakePlatform) checkClientAuth(r *http.Request) bool {
	switch f.platform {
	case domain.PlatformZoom:
		id, secret, ok := r.BasicAuth()
		return ok && id == testClientID && secret == testClientSecret && r.PostForm.Get("client_secret") == ""
	case domain.PlatformAsana:
		_, _, basic := r.BasicAuth()
		return !basic && r.PostForm.Get("client_id") == testClientID && r.PostForm.Get("client_secret") == testClientSecret
	}
	return false
}

func (f *fakePlatform) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if !f.checkClientAuth(r) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		return
	}

	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		f.refreshes.Add(1)
		if f.invalidGrant || r.PostForm.Get("refresh_token") != f.refreshToken {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token is invalid"}`))
			return
		}
	case "authorization_code":
		sum := cryptox.S256Challenge(r.PostForm.Get("code_verifier"))
		if r.PostForm.Get("code") != "good-code" || sum != f.expectChallenge {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
		return
	}

	f.seq++
	f.accessToken = fmt.Sprintf("at-%d", f.seq)
	body := map[string]any{
		"access_token": f.accessToken,
		"token_type":   "bearer",
		"expires_in":   3600,
		"scope":        "user:read",
	}
	if f.rotate || r.PostForm.Get("grant_type") == "authorization_code" {
		f.refreshToken = fmt.Sprintf("rt-%d", f.seq)
		body["refresh_token"] = f.refreshToken
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakePlatform) handleMe(w http.ResponseWriter, r *http.Request) {
	f.apiCalls.Add(1)

	f.mu.Lock()
	current, always401 := f.accessToken, f.always401
	f.mu.Unlock()

	if always401 || r.Header.Get("Authorization") != "Bearer "+current {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"me-1","email":"alice@example.com"}`))
}

type brokerEnv struct {
	store  *sqlite.Store
	cipher *cryptox.TokenCipher
	now    time.Time
}

func newBrokerEnv(t *testing.T) *brokerEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	require.NoError(t, st.Users().CreateUser(context.Background(), domain.User{
		ID:           testUserID,
		Email:        "alice@example.com",
		PasswordHash: "x",
	}))

	cipher, err := cryptox.NewTokenCipher([]byte(strings.Repeat("k", cryptox.TokenKeySize)))
	require.NoError(t, err)

	return &brokerEnv{store: st, cipher: cipher, now: time.Now()}
}

func (e *brokerEnv) broker(t *testing.T, opts Options, platforms ...*fakePlatform) *Broker {
	t.Helper()

	opts.Store = e.store
	opts.Cipher = e.cipher
	for _, f := range platforms {
		opts.Providers = append(opts.Providers, f.provider())
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b
}

// connect stores a connection whose access token expires in expiresIn.
func (e *brokerEnv) connect(t *testing.T, p domain.Platform, access, refresh string, expiresIn time.Duration) {
	t.Helper()

	accessCT, err := e.cipher.Encrypt(access)
	require.NoError(t, err)
	var refreshCT string
	if refresh != "" {
		refreshCT, err = e.cipher.Encrypt(refresh)
		require.NoError(t, err)
	}

	now := time.Now()
	require.NoError(t, e.store.PlatformConnections().UpsertPlatformConnection(context.Background(), domain.PlatformConnection{
		ID:             idx.New(idx.PrefixConnection).String(),
		UserID:         testUserID,
		Platform:       p,
		AccessTokenCT:  accessCT,
		RefreshTokenCT: refreshCT,
		ExpiresAt:      now.Add(expiresIn),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

func basicHeader(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}
