package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// tool is a resource operation an agent can invoke with its access token.
type tool struct {
	// anyScope gates the tool; empty means any valid token.
	anyScope []string
	run      func(ctx context.Context, p httpx.Principal, args json.RawMessage) (any, error)
}

type whoamiResult struct {
	Sub      string   `json:"sub"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
}

func (r *Router) builtinTools() map[string]tool {
	return map[string]tool{
		"whoami": {
			run: func(_ context.Context, p httpx.Principal, _ json.RawMessage) (any, error) {
				return whoamiResult{Sub: p.UserID, Email: p.Email, Name: p.Name, ClientID: p.ClientID, Scopes: p.Scopes}, nil
			},
		},
		"list_connections": {
			anyScope: []string{domain.ScopeProfile},
			run: func(ctx context.Context, p httpx.Principal, _ json.RawMessage) (any, error) {
				return r.listConnections(ctx, p.UserID)
			},
		},
		"zoom_me": {
			anyScope: []string{domain.ScopeMeetingsRead},
			run:      r.platformMe(domain.PlatformZoom),
		},
		"asana_me": {
			anyScope: []string{domain.ScopeTasksRead, domain.ScopeTasksWrite},
			run:      r.platformMe(domain.PlatformAsana),
		},
	}
}

// platformMe fetches the linked account's profile through the broker.
func (r *Router) platformMe(p domain.Platform) func(context.Context, httpx.Principal, json.RawMessage) (any, error) {
	return func(ctx context.Context, pr httpx.Principal, _ json.RawMessage) (any, error) {
		var me json.RawMessage
		if err := r.Broker.GetJSON(ctx, pr.UserID, p, "/users/me", &me); err != nil {
			return nil, err
		}
		return me, nil
	}
}

// ToolsHandler serves POST /v1/tools/{name}.
type ToolsHandler struct {
	router *Router
	tools  map[string]tool
}

// ServeHTTP godoc
//
//	@Summary		Invoke a tool
//	@Description	Runs a built-in tool for the token's user. whoami needs any token, list_connections needs profile,
//	@Description	zoom_me needs meetings:read and asana_me needs tasks:read. Platform tools answer 409 reconnect_required
//	@Description	when the linked account must be re-authorized.
//	@Tags			Tools
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string								true	"Tool name"	Enums(whoami, list_connections, zoom_me, asana_me)
//	@Param			args	body		object								false	"Tool arguments"
//	@Success		200		{object}	authsdk.ToolResponse				"Tool result"
//	@Failure		401		{object}	authsdk.ErrorResponse				"Invalid or missing access token"
//	@Failure		403		{object}	authsdk.ErrorResponse				"Insufficient scope"
//	@Failure		404		{object}	authsdk.ErrorResponse				"Unknown tool"
//	@Failure		409		{object}	authsdk.ReconnectRequiredResponse	"Platform must be reconnected"
//	@Failure		502		{object}	authsdk.ErrorResponse				"Platform request failed"
//	@Router			/v1/tools/{name} [post]
func (h *ToolsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	t, ok := h.tools[name]
	if !ok {
		authsdk.ErrUnknownTool.WriteError(w)
		return
	}
	if len(t.anyScope) > 0 && !p.HasAnyScope(t.anyScope...) {
		required := strings.Join(t.anyScope, " ")
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+required+`"`)
		authsdk.ErrInsufficientScope.WithDescription("requires scope: " + required).WriteError(w)
		return
	}

	// An empty body means no arguments.
	var args json.RawMessage
	if err := httpx.DecodeJSON(w, r, &args, true); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("arguments must be a JSON value").WriteError(w)
		return
	}

	slogx.FromContext(ctx).Debug("invoking tool", "tool", name)
	result, err := t.run(ctx, p, args)
	if err != nil {
		h.router.writeBrokerError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ToolResponse{Tool: name, Result: result})
}

// listConnections is shared by the tool and GET /v1/platforms.
func (r *Router) listConnections(ctx context.Context, userID string) (authsdk.ListConnectionsResponse, error) {
	conns, err := r.Broker.Connections(ctx, userID)
	if err != nil {
		return authsdk.ListConnectionsResponse{}, err
	}
	out := authsdk.ListConnectionsResponse{Connections: make([]authsdk.PlatformConnection, 0, len(conns))}
	for _, c := range conns {
		out.Connections = append(out.Connections, authsdk.PlatformConnection{
			Platform:    string(c.Platform),
			Scope:       domain.FormatScope(c.Scopes),
			ExpiresAt:   c.ExpiresAt,
			ConnectedAt: c.ConnectedAt,
		})
	}
	return out, nil
}
