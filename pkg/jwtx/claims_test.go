package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "https://auth.example.com",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("https://auth.example.com"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("https://evil.example.com"), jwtx.ErrIssuer)
	})
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: []string{"https://api.example.com", "client-1"},
		},
	}

	require.NoError(t, c.ValidateAudience("client-1"))
	require.NoError(t, c.ValidateAudience(""))
	require.ErrorIs(t, c.ValidateAudience("client-2"), jwtx.ErrAudience)
}

func TestNewClaims_Types(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	access := jwtx.NewAccessClaims("iss", "aud", "user-1", "client-1", []string{"openid", "email"}, now, jwtx.AccessTokenTTL)
	require.Equal(t, jwtx.TypeAccess, access.Type)
	require.Equal(t, "openid email", access.Scope)
	require.Equal(t, []string{"openid", "email"}, access.Scopes())
	require.Equal(t, jwt.ClaimStrings{"aud"}, access.Audience)
	require.Equal(t, now.Add(time.Hour), access.ExpiresAt.Time)
	require.NotEmpty(t, access.ID)

	refresh := jwtx.NewRefreshClaims("iss", "user-1", "client-1", []string{"openid"}, now, jwtx.RefreshTokenTTL)
	require.Equal(t, jwtx.TypeRefresh, refresh.Type)
	require.Empty(t, refresh.Audience)
	require.Equal(t, now.Add(30*24*time.Hour), refresh.ExpiresAt.Time)
	require.NotEqual(t, access.ID, refresh.ID)

	id := jwtx.NewIDClaims("iss", "client-1", jwtx.Profile{
		Subject:       "user-1",
		Email:         "a@example.com",
		EmailVerified: true,
		Name:          "Ada",
	}, "n-0S6_WzA2Mj", now, jwtx.IDTokenTTL)
	require.Equal(t, jwtx.TypeID, id.Type)
	require.Equal(t, jwt.ClaimStrings{"client-1"}, id.Audience)
	require.Equal(t, "n-0S6_WzA2Mj", id.Nonce)
	require.NotNil(t, id.EmailVerified)
	require.True(t, *id.EmailVerified)

	noEmail := jwtx.NewIDClaims("iss", "client-1", jwtx.Profile{Subject: "user-1"}, "", now, jwtx.IDTokenTTL)
	require.Nil(t, noEmail.EmailVerified)
}

func TestValidateType(t *testing.T) {
	c := &jwtx.Claims{Type: jwtx.TypeRefresh}
	require.NoError(t, c.ValidateType(jwtx.TypeRefresh))
	require.NoError(t, c.ValidateType(""))
	require.ErrorIs(t, c.ValidateType(jwtx.TypeAccess), jwtx.ErrTokenType)
}

func TestNewClaims_WholeSecondTimestamps(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 750*int(time.Millisecond), time.UTC)

	c := jwtx.NewAccessClaims("iss", "aud", "u", "c", nil, now, time.Minute)
	require.Equal(t, now.Truncate(time.Second), c.IssuedAt.Time)
	require.Equal(t, now.Add(time.Minute).Truncate(time.Second), c.ExpiresAt.Time)
}
