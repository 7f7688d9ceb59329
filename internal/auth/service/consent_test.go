package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
)

func TestConsent(t *testing.T) {
	ctx := context.Background()

	newPending := func(t *testing.T, env *testEnv, scope string) string {
		t.Helper()
		p, err := env.authorize.ValidateRequest(ctx, authorizeRequest(scope, cryptox.NewPKCEVerifier()))
		require.NoError(t, err)
		return p.RequestID
	}

	t.Run("first authorization prompts", func(t *testing.T) {
		env := newTestEnv(t)
		id := newPending(t, env, "openid tasks:read")

		out, err := env.consent.Evaluate(ctx, env.user.ID, id)
		require.NoError(t, err)
		require.Empty(t, out.RedirectURL)
		require.NotNil(t, out.Prompt)
		require.Equal(t, "Agent", out.Prompt.ClientName)
		require.Equal(t, []string{"openid", "tasks:read"}, out.Prompt.Scopes)
	})

	t.Run("approve issues a code exactly once", func(t *testing.T) {
		env := newTestEnv(t)
		id := newPending(t, env, "openid")

		redirect, err := env.consent.Decide(ctx, env.user.ID, id, true)
		require.NoError(t, err)
		u, err := url.Parse(redirect)
		require.NoError(t, err)
		require.Equal(t, "agent.example", u.Host)
		require.NotEmpty(t, u.Query().Get("code"))
		require.Equal(t, "xyz", u.Query().Get("state"))

		_, err = env.consent.Decide(ctx, env.user.ID, id, true)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("deny redirects access_denied", func(t *testing.T) {
		env := newTestEnv(t)
		id := newPending(t, env, "openid")

		redirect, err := env.consent.Decide(ctx, env.user.ID, id, false)
		require.NoError(t, err)
		u, err := url.Parse(redirect)
		require.NoError(t, err)
		require.Equal(t, "access_denied", u.Query().Get("error"))
		require.Empty(t, u.Query().Get("code"))

		_, err = env.store.Consents().GetConsent(ctx, env.user.ID, testClientID)
		require.Error(t, err)
	})

	t.Run("covered scopes auto-approve and grants accumulate", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.consent.Decide(ctx, env.user.ID, newPending(t, env, "openid tasks:read"), true)
		require.NoError(t, err)
		_, err = env.consent.Decide(ctx, env.user.ID, newPending(t, env, "meetings:read"), true)
		require.NoError(t, err)

		c, err := env.store.Consents().GetConsent(ctx, env.user.ID, testClientID)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"openid", "tasks:read", "meetings:read"}, c.Scopes)

		out, err := env.consent.Evaluate(ctx, env.user.ID, newPending(t, env, "tasks:read meetings:read"))
		require.NoError(t, err)
		require.Nil(t, out.Prompt)
		require.Contains(t, out.RedirectURL, "code=")
	})

	t.Run("revoked consent prompts again", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.consent.Decide(ctx, env.user.ID, newPending(t, env, "openid"), true)
		require.NoError(t, err)
		require.NoError(t, env.consent.Revoke(ctx, env.user.ID, testClientID))

		out, err := env.consent.Evaluate(ctx, env.user.ID, newPending(t, env, "openid"))
		require.NoError(t, err)
		require.NotNil(t, out.Prompt)

		require.NoError(t, env.consent.Revoke(ctx, env.user.ID, "unknown-client"))
	})
}
