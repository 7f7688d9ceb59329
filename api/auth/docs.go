// Package auth registers the Swagger 2.0 description of the TaskBridge
// HTTP API with swag, which http-swagger serves under /swagger/. The
// document is kept in step with the handler annotations by hand.
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/taskbridge"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/oauth/authorize": {
            "get": {
                "tags": ["OAuth2"],
                "summary": "Start an authorization request",
                "parameters": [
                    {"type": "string", "name": "response_type", "in": "query", "required": true},
                    {"type": "string", "name": "client_id", "in": "query", "required": true},
                    {"type": "string", "name": "redirect_uri", "in": "query", "required": true},
                    {"type": "string", "name": "scope", "in": "query"},
                    {"type": "string", "name": "state", "in": "query"},
                    {"type": "string", "name": "nonce", "in": "query"},
                    {"type": "string", "name": "code_challenge", "in": "query", "required": true},
                    {"type": "string", "name": "code_challenge_method", "in": "query"}
                ],
                "responses": {
                    "302": {"description": "Redirect to login, consent or the client with an error"},
                    "400": {"description": "Invalid client or redirect URI", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/login": {
            "get": {
                "tags": ["OAuth2"],
                "summary": "Render the sign-in page",
                "produces": ["text/html"],
                "responses": {"200": {"description": "Sign-in page"}}
            },
            "post": {
                "tags": ["OAuth2"],
                "summary": "Sign in",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"type": "string", "name": "request_id", "in": "formData"},
                    {"type": "string", "name": "email", "in": "formData", "required": true},
                    {"type": "string", "name": "password", "in": "formData", "required": true},
                    {"type": "string", "name": "otp", "in": "formData"}
                ],
                "responses": {
                    "303": {"description": "Signed in, continue to consent"},
                    "401": {"description": "Invalid credentials or second factor required", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/consent": {
            "get": {
                "tags": ["OAuth2"],
                "summary": "Show the consent prompt",
                "produces": ["application/json", "text/html"],
                "parameters": [{"type": "string", "name": "request_id", "in": "query", "required": true}],
                "responses": {
                    "200": {"description": "Consent prompt", "schema": {"$ref": "#/definitions/authsdk.ConsentPrompt"}},
                    "302": {"description": "Consent already granted, redirect to the client"}
                }
            },
            "post": {
                "tags": ["OAuth2"],
                "summary": "Approve or deny a consent prompt",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"type": "string", "name": "request_id", "in": "formData", "required": true},
                    {"type": "string", "enum": ["approve", "deny"], "name": "decision", "in": "formData", "required": true}
                ],
                "responses": {"302": {"description": "Redirect to the client with a code or access_denied"}}
            }
        },
        "/oauth/token": {
            "post": {
                "tags": ["OAuth2"],
                "summary": "Exchange a code or refresh token",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "enum": ["authorization_code", "refresh_token"], "name": "grant_type", "in": "formData", "required": true},
                    {"type": "string", "name": "code", "in": "formData"},
                    {"type": "string", "name": "redirect_uri", "in": "formData"},
                    {"type": "string", "name": "code_verifier", "in": "formData"},
                    {"type": "string", "name": "refresh_token", "in": "formData"},
                    {"type": "string", "name": "client_id", "in": "formData"},
                    {"type": "string", "name": "client_secret", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "Invalid grant or request", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "Invalid client", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/revoke": {
            "post": {
                "tags": ["OAuth2"],
                "summary": "Revoke a token",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [{"type": "string", "name": "token", "in": "formData", "required": true}],
                "responses": {"200": {"description": "Revoked or unknown"}}
            }
        },
        "/oauth/introspect": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["OAuth2"],
                "summary": "Introspect a token",
                "parameters": [{"type": "string", "name": "token", "in": "formData", "required": true}],
                "responses": {"200": {"description": "Token state", "schema": {"$ref": "#/definitions/authsdk.IntrospectionResponse"}}}
            }
        },
        "/oauth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["OAuth2"],
                "summary": "End the session behind an access token",
                "responses": {"204": {"description": "Logged out"}}
            }
        },
        "/oauth/userinfo": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["OIDC"],
                "summary": "Claims about the authenticated user",
                "responses": {"200": {"description": "User claims", "schema": {"$ref": "#/definitions/authsdk.UserInfoResponse"}}}
            }
        },
        "/.well-known/jwks.json": {
            "get": {
                "tags": ["Discovery"],
                "summary": "JSON Web Key Set",
                "responses": {"200": {"description": "Public signing keys"}}
            }
        },
        "/.well-known/openid-configuration": {
            "get": {
                "tags": ["Discovery"],
                "summary": "OpenID Provider metadata",
                "responses": {"200": {"description": "Metadata", "schema": {"$ref": "#/definitions/authsdk.DiscoveryResponse"}}}
            }
        },
        "/.well-known/oauth-authorization-server": {
            "get": {
                "tags": ["Discovery"],
                "summary": "Authorization server metadata",
                "responses": {"200": {"description": "Metadata", "schema": {"$ref": "#/definitions/authsdk.DiscoveryResponse"}}}
            }
        },
        "/v1/tools/{name}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tools"],
                "summary": "Invoke a tool",
                "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Tool result", "schema": {"$ref": "#/definitions/authsdk.ToolResponse"}},
                    "403": {"description": "Insufficient scope", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "404": {"description": "Unknown tool", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "409": {"description": "Platform must be reconnected", "schema": {"$ref": "#/definitions/authsdk.ReconnectRequiredResponse"}}
                }
            }
        },
        "/platforms/{platform}/connect": {
            "get": {
                "tags": ["Platforms"],
                "summary": "Start linking a platform account",
                "parameters": [{"type": "string", "enum": ["zoom", "asana"], "name": "platform", "in": "path", "required": true}],
                "responses": {"302": {"description": "Redirect to the platform or to sign-in"}}
            }
        },
        "/platforms/{platform}/callback": {
            "get": {
                "tags": ["Platforms"],
                "summary": "Platform authorization callback",
                "parameters": [
                    {"type": "string", "name": "platform", "in": "path", "required": true},
                    {"type": "string", "name": "state", "in": "query", "required": true},
                    {"type": "string", "name": "code", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Connected"},
                    "400": {"description": "Invalid or expired state", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/platforms": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Platforms"],
                "summary": "List linked platforms",
                "responses": {"200": {"description": "Connections", "schema": {"$ref": "#/definitions/authsdk.ListConnectionsResponse"}}}
            }
        },
        "/v1/platforms/{platform}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Platforms"],
                "summary": "Unlink a platform",
                "parameters": [{"type": "string", "name": "platform", "in": "path", "required": true}],
                "responses": {"204": {"description": "Disconnected"}, "404": {"description": "Not connected"}}
            }
        },
        "/v1/mfa/totp/enroll": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["MFA"],
                "summary": "Start TOTP enrollment",
                "responses": {"200": {"description": "Secret and otpauth URL", "schema": {"$ref": "#/definitions/authsdk.TOTPEnrollResponse"}}}
            }
        },
        "/v1/mfa/totp/confirm": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["MFA"],
                "summary": "Confirm TOTP enrollment",
                "responses": {"204": {"description": "Enabled"}}
            }
        },
        "/v1/mfa/totp": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["MFA"],
                "summary": "Remove TOTP",
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/livez": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "Alive", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}}
            }
        },
        "/readyz": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "Not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"}
            }
        },
        "authsdk.ReconnectRequiredResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "reconnect_required"},
                "error_description": {"type": "string"},
                "platform": {"type": "string"},
                "connect_url": {"type": "string"}
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string", "example": "Bearer"},
                "expires_in": {"type": "integer"},
                "refresh_token": {"type": "string"},
                "id_token": {"type": "string"},
                "scope": {"type": "string"}
            }
        },
        "authsdk.ConsentPrompt": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "client_id": {"type": "string"},
                "client_name": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "object"}}
            }
        },
        "authsdk.IntrospectionResponse": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "scope": {"type": "string"},
                "client_id": {"type": "string"},
                "sub": {"type": "string"},
                "exp": {"type": "integer"},
                "iat": {"type": "integer"},
                "token_type": {"type": "string"}
            }
        },
        "authsdk.UserInfoResponse": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "email_verified": {"type": "boolean"}
            }
        },
        "authsdk.DiscoveryResponse": {
            "type": "object",
            "properties": {
                "issuer": {"type": "string"},
                "authorization_endpoint": {"type": "string"},
                "token_endpoint": {"type": "string"},
                "jwks_uri": {"type": "string"},
                "code_challenge_methods_supported": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.ToolResponse": {
            "type": "object",
            "properties": {
                "tool": {"type": "string"},
                "result": {"type": "object"}
            }
        },
        "authsdk.ListConnectionsResponse": {
            "type": "object",
            "properties": {
                "connections": {"type": "array", "items": {"type": "object"}}
            }
        },
        "authsdk.TOTPEnrollResponse": {
            "type": "object",
            "properties": {
                "secret": {"type": "string"},
                "otpauth_url": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"},
                "checks": {"type": "object"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "TaskBridge Authorization Server API",
	Description:      "OAuth 2.1 / OpenID Connect authorization server for agents, with a token broker for linked Zoom and Asana accounts.\n\nAccess tokens are signed JWTs and can be verified using the JWKS endpoint.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
