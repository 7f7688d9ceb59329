/*
Package authsdk is the Go client for the taskbridge authorization server.

# Overview

An agent (or any OAuth client) uses SDKClient to run the authorization
code flow with PKCE, redeem and refresh tokens, and call the protected
tool endpoints:

	client := authsdk.NewSDKClient("https://auth.example.com")

	pkce := authsdk.GeneratePKCEChallenge()
	redirect := client.BuildAuthorizeURL(authsdk.AuthorizeParams{
		ClientID:    clientID,
		RedirectURI: "https://claude.ai/api/mcp/auth_callback",
		State:       state,
		Scopes:      []string{"openid", "email", "meetings:read"},
		PKCE:        pkce,
	})
	// ... user logs in and consents, browser lands on the redirect_uri ...

	code, gotState, err := authsdk.ParseAuthorizationCallback(callbackURL)
	tokens, err := client.ExchangeAuthorizationCode(ctx, clientID, code, redirectURI, pkce.Verifier)

	result, err := client.InvokeTool(ctx, tokens.AccessToken, "whoami", nil)

# Errors

Server errors come back as *OAuth2Error carrying the RFC 6749 error code,
or *ReconnectRequiredError when a linked platform must be re-authorized:

	var reconnect *authsdk.ReconnectRequiredError
	if errors.As(err, &reconnect) {
		fmt.Println("please reconnect", reconnect.Platform, "at", reconnect.ConnectURL)
	}

The same types are used by the server to write responses, so the wire
format is defined in exactly one place.
*/
package authsdk
