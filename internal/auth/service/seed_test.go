package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeeder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"users": [{"email": "bob@example.com", "name": "Bob", "password": "hunter22"}],
		"clients": [
			{"id": "backend", "name": "Backend", "secret": "s3cret", "redirect_uris": ["https://backend.example/cb"]},
			{"id": "agent", "redirect_uris": ["https://agent.example/cb", "https://agent.example/cb2"]}
		]
	}`), 0o600))

	data, err := LoadSeedFile(path)
	require.NoError(t, err)

	seeder := &Seeder{Users: env.users, Clients: env.clients}
	require.NoError(t, seeder.Apply(ctx, data))
	require.NoError(t, seeder.Apply(ctx, data), "seeding twice is a no-op")

	_, _, err = env.login.Login(ctx, "bob@example.com", "hunter22", "")
	require.NoError(t, err)

	backend, err := env.clients.GetClient(ctx, "backend")
	require.NoError(t, err)
	require.True(t, backend.IsConfidential())
	require.NoError(t, env.passwords.Verify("s3cret", backend.SecretHash))

	agent, err := env.clients.GetClient(ctx, "agent")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"https://agent.example/cb", "https://agent.example/cb2"}, agent.RedirectURIs)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
