package auth_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
)

/*
 * Container setup and shared helpers for the end-to-end tests. The
 * server runs from the release Dockerfile next to a Redis instance that
 * holds the broker's refresh leases.
 */

const (
	testImageName = "taskbridge-test:latest"

	userEmail    = "alice@example.com"
	userPassword = "correct horse battery staple"
	clientID     = "agent"
	redirectURI  = "https://agent.example/callback"

	// 32 bytes, hex encoded.
	encryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

const seedFile = `{
  "users": [
    {"email": "alice@example.com", "name": "Alice", "email_verified": true, "password": "correct horse battery staple"}
  ],
  "clients": [
    {"id": "agent", "name": "Agent", "redirect_uris": ["https://agent.example/callback"]}
  ]
}`

// TestMain builds the Docker image once before all tests and removes it
// afterwards.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building TaskBridge Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up TaskBridge Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

// setupRedis starts a Redis container and returns its address on the
// Docker bridge network.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis: %v", err)
		}
	})

	ip, err := container.ContainerIP(ctx)
	require.NoError(t, err)
	return ip + ":6379"
}

// setupTaskBridge starts the server with the seed file applied and
// returns an SDK client pointing at it. Extra env entries override the
// defaults.
func setupTaskBridge(t *testing.T, env map[string]string) *authsdk.SDKClient {
	t.Helper()
	ctx := context.Background()

	base := map[string]string{
		"ENV":                   "dev",
		"AUTH_ISSUER":           "http://localhost:8080",
		"AUTH_ALGORITHM":        "EdDSA",
		"AUTH_SEED_FILE":        "/etc/taskbridge/seed.json",
		"AUTH_PASSWORD_PEPPER":  "e2e-pepper",
		"TOKEN_ENCRYPTION_KEY":  encryptionKey,
		"ASANA_CLIENT_ID":       "asana-app",
		"ASANA_CLIENT_SECRET":   "asana-secret",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "json",
		"HOUSEKEEPING_INTERVAL": "1m",
	}
	for k, v := range env {
		base[k] = v
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          base,
			Files: []testcontainers.ContainerFile{{
				Reader:            strings.NewReader(seedFile),
				ContainerFilePath: "/etc/taskbridge/seed.json",
				FileMode:          0o644,
			}},
			WaitingFor: wait.ForHTTP(authsdk.PathLivez).
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return authsdk.NewSDKClient(fmt.Sprintf("http://%s:%s", host, mappedPort.Port()))
}

// login runs the browser leg and the code exchange for the seeded user.
func login(t *testing.T, client *authsdk.SDKClient, scopes ...string) *authsdk.TokenResponse {
	t.Helper()
	ctx := context.Background()

	pkce := authsdk.GeneratePKCEChallenge()
	res, err := client.AuthorizeWithPassword(ctx, authsdk.AuthorizeParams{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       "e2e",
		Scopes:      scopes,
		PKCE:        pkce,
	}, authsdk.Credentials{Email: userEmail, Password: userPassword}, true)
	require.NoError(t, err, "authorization should succeed")
	require.Equal(t, "e2e", res.State)

	tok, err := client.ExchangeAuthorizationCode(ctx, clientID, res.Code, redirectURI, pkce.Verifier)
	require.NoError(t, err, "code exchange should succeed")
	assertTokenResponse(t, tok)
	return tok
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.NotEmpty(t, resp.Scope, "Scope should not be empty")
}

// assertOAuthError checks the error code of a failed SDK call.
func assertOAuthError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, code, oe.Code, "unexpected error: %v", err)
}
