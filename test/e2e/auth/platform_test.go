package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
)

func TestPlatformToolWithoutConnection(t *testing.T) {
	client := setupTaskBridge(t, nil)
	ctx := context.Background()

	tok := login(t, client, "openid", "tasks:read", "meetings:read")

	_, err := client.InvokeTool(ctx, tok.AccessToken, "asana_me", nil)
	var rr *authsdk.ReconnectRequiredError
	require.True(t, errors.As(err, &rr), "want reconnect_required, got %v", err)
	require.Equal(t, "asana", rr.Platform)
	require.Equal(t, "http://localhost:8080/platforms/asana/connect", rr.ConnectURL)

	// Zoom has no credentials in this deployment.
	_, err = client.InvokeTool(ctx, tok.AccessToken, "zoom_me", nil)
	assertOAuthError(t, err, authsdk.ErrorCodeInvalidRequest)

	conns, err := client.ListConnections(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Empty(t, conns.Connections)
}

func TestWhoamiTool(t *testing.T) {
	client := setupTaskBridge(t, nil)

	tok := login(t, client, "openid")
	res, err := client.InvokeTool(context.Background(), tok.AccessToken, "whoami", nil)
	require.NoError(t, err)
	require.Equal(t, clientID, res.Result.(map[string]any)["client_id"])
}
