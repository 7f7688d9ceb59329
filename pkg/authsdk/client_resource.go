package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// UserInfo fetches the OIDC claims released by the token's scopes.
func (c *SDKClient) UserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathUserInfo, accessToken, nil, nil)
	if err != nil {
		return nil, err
	}

	var out UserInfoResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// InvokeTool calls a resource tool with JSON arguments.
func (c *SDKClient) InvokeTool(ctx context.Context, accessToken, tool string, args any) (*ToolResponse, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, PathTools+tool, accessToken, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var out ToolResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConnections returns the caller's linked platforms.
func (c *SDKClient) ListConnections(ctx context.Context, accessToken string) (*ListConnectionsResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathPlatforms, accessToken, nil, nil)
	if err != nil {
		return nil, err
	}

	var out ListConnectionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJWKS fetches the public signing keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathJWKS, "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out JWKSResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Discover fetches the OpenID Provider metadata.
func (c *SDKClient) Discover(ctx context.Context) (*DiscoveryResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathOIDCDiscovery, "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out DiscoveryResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReadiness calls /readyz.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathReadyz, "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out HealthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
