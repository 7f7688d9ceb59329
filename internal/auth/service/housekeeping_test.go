package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.exchange(t, "openid")
	_, err := env.authorize.ValidateRequest(ctx, authorizeRequest("openid", cryptox.NewPKCEVerifier()))
	require.NoError(t, err)
	_, _, err = env.login.Login(ctx, "alice@example.com", testPassword, "")
	require.NoError(t, err)

	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)
	hk.Now = env.clock.Now
	require.Zero(t, hk.Cleanup(ctx))

	env.clock.Advance(31 * 24 * time.Hour)
	// two requests, one code, one session, one access and one refresh token
	require.EqualValues(t, 6, hk.Cleanup(ctx))
}
