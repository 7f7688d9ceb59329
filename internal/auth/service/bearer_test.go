package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBearerAuthenticator(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	pair := env.exchange(t, "openid profile tasks:read")

	t.Run("valid token", func(t *testing.T) {
		p, err := env.bearer.Authenticate(ctx, "bearer "+pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, env.user.ID, p.UserID)
		require.Equal(t, "alice@example.com", p.Email)
		require.Equal(t, testClientID, p.ClientID)
		require.True(t, p.HasAllScopes("profile", "tasks:read"))
		require.False(t, p.HasScope("meetings:read"))
	})

	t.Run("missing or malformed header", func(t *testing.T) {
		for _, h := range []string{"", "Bearer", "Bearer   ", "Basic abc", pair.AccessToken} {
			_, err := env.bearer.Authenticate(ctx, h)
			require.ErrorIs(t, err, ErrMissingToken, h)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := env.bearer.Authenticate(ctx, "Bearer not.a.jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token is the wrong type", func(t *testing.T) {
		_, err := env.bearer.Authenticate(ctx, "Bearer "+pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("id token is the wrong type", func(t *testing.T) {
		_, err := env.bearer.Authenticate(ctx, "Bearer "+pair.IDToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := *env.bearer
		other.Audience = "https://elsewhere.test"
		_, err := other.Authenticate(ctx, "Bearer "+pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		env.clock.Advance(time.Hour + time.Second)
		_, err := env.bearer.Authenticate(ctx, "Bearer "+pair.AccessToken)
		require.ErrorIs(t, err, ErrExpiredToken)
	})
}
