package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadinessWithoutRedis(t *testing.T) {
	client := setupTaskBridge(t, nil)

	health, err := client.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
	require.Empty(t, health.Checks.Lock)
}

func TestReadinessWithRedisLeases(t *testing.T) {
	addr := setupRedis(t)
	client := setupTaskBridge(t, map[string]string{"REDIS_URL": "redis://" + addr + "/0"})

	health, err := client.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Lock)

	// Leases do not change the token flow.
	login(t, client, "openid")
}
