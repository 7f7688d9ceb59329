package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

const (
	testIssuer    = "https://auth.test"
	testAudience  = "https://api.test"
	testPassword  = "correct horse battery staple"
	testClientID  = "agent"
	testRedirect  = "https://agent.example/cb"
	trustedDomain = "trusted.example"
)

// fakeClock is a settable clock shared by every service in a test env.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store     *sqlite.Store
	clock     *fakeClock
	codec     *jwtx.Codec
	km        *jwtx.KeyManager
	passwords *cryptox.PasswordHasher

	authorize *AuthorizeService
	codes     *CodeIssuer
	consent   *ConsentService
	tokens    *TokenService
	bearer    *BearerAuthenticator
	login     *LoginService
	users     *UserService
	clients   *ClientService

	user domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.AlgorithmES256)
	require.NoError(t, err)

	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := jwtx.NewCodec(km, testIssuer).WithClock(clk.Now)
	passwords := cryptox.NewPasswordHasher("pepper")

	env := &testEnv{store: st, clock: clk, codec: codec, km: km, passwords: passwords}
	env.codes = &CodeIssuer{Store: st, Now: clk.Now}
	env.authorize = &AuthorizeService{Store: st, TrustedDomains: []string{trustedDomain}, Now: clk.Now}
	env.consent = &ConsentService{Store: st, Codes: env.codes, Now: clk.Now}
	env.tokens = &TokenService{Store: st, Codec: codec, Passwords: passwords, Audience: testAudience, Now: clk.Now}
	env.bearer = &BearerAuthenticator{Codec: codec, Store: st, Audience: testAudience, Now: clk.Now}
	env.login = &LoginService{Store: st, Passwords: passwords, Now: clk.Now}
	env.users = &UserService{Store: st, Passwords: passwords, Now: clk.Now}
	env.clients = &ClientService{Store: st, Passwords: passwords}

	ctx := context.Background()
	env.user, err = env.users.CreateUser(ctx, NewUser{
		Email:         "alice@example.com",
		Name:          "Alice",
		Picture:       "https://example.com/alice.png",
		EmailVerified: true,
		Password:      testPassword,
	})
	require.NoError(t, err)

	_, _, err = env.clients.CreateClient(ctx, NewClient{
		ID:           testClientID,
		Name:         "Agent",
		RedirectURIs: []string{testRedirect},
	})
	require.NoError(t, err)

	return env
}

// authorizeRequest builds a valid authorize call for the public test client.
func authorizeRequest(scope, verifier string) AuthorizeRequest {
	return AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            testClientID,
		RedirectURI:         testRedirect,
		Scope:               scope,
		State:               "xyz",
		CodeChallenge:       cryptox.S256Challenge(verifier),
		CodeChallengeMethod: cryptox.PKCEMethodS256,
		Nonce:               "n-0S6",
	}
}

// issueCode runs authorize and consent for the test user and returns the
// code and the PKCE verifier it is bound to.
func (e *testEnv) issueCode(t *testing.T, scope string) (code, verifier string) {
	t.Helper()
	ctx := context.Background()

	verifier = cryptox.NewPKCEVerifier()
	pending, err := e.authorize.ValidateRequest(ctx, authorizeRequest(scope, verifier))
	require.NoError(t, err)

	redirect, err := e.consent.Decide(ctx, e.user.ID, pending.RequestID, true)
	require.NoError(t, err)

	return codeFromRedirect(t, redirect), verifier
}

func (e *testEnv) exchange(t *testing.T, scope string) *domain.TokenPair {
	t.Helper()

	code, verifier := e.issueCode(t, scope)
	pair, err := e.tokens.ExchangeAuthorizationCode(context.Background(), AuthorizationCodeGrant{
		ClientID:     testClientID,
		Code:         code,
		RedirectURI:  testRedirect,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	return pair
}

func codeFromRedirect(t *testing.T, redirect string) string {
	t.Helper()

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code, "redirect has no code: %s", redirect)
	return code
}
