package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/broker"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

var errNotConnected = authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest, "platform is not connected")

// PlatformsHandler links third-party accounts and lists or removes them.
type PlatformsHandler struct {
	router   *Router
	Broker   *broker.Broker
	Sessions *sessionCookies
}

func platformFromPath(w http.ResponseWriter, r *http.Request) (domain.Platform, bool) {
	p, err := domain.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	return p, true
}

// HandleConnect starts the provider authorization for the signed-in user.
//
//	@Summary		Connect a platform
//	@Description	Redirects the signed-in user to the platform's consent page. Without a session the user is sent to /oauth/login first.
//	@Tags			Platforms
//	@Param			platform		path		string					true	"Platform"	Enums(zoom, asana)
//	@Param			redirect_after	query		string					false	"Local path to land on once connected"
//	@Success		302				{string}	string					"Redirect to the provider"
//	@Failure		404				{object}	authsdk.ErrorResponse	"Unknown or disabled platform"
//	@Router			/platforms/{platform}/connect [get]
func (h *PlatformsHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	p, ok := platformFromPath(w, r)
	if !ok {
		return
	}

	user, ok := h.Sessions.current(r)
	if !ok {
		http.Redirect(w, r, authsdk.PathLogin+"?"+url.Values{"return_to": {r.URL.RequestURI()}}.Encode(), http.StatusFound)
		return
	}

	authURL, err := h.Broker.StartConnect(r.Context(), user.ID, p, localPath(r.URL.Query().Get("redirect_after")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback receives the provider redirect.
//
//	@Summary		Platform callback
//	@Description	Consumes the single-use state, exchanges the code and stores the encrypted tokens.
//	@Tags			Platforms
//	@Produce		json
//	@Param			platform	path		string					true	"Platform"	Enums(zoom, asana)
//	@Param			state		query		string					true	"State issued by connect"
//	@Param			code		query		string					false	"Provider authorization code"
//	@Param			error		query		string					false	"Provider error"
//	@Success		200			{object}	map[string]string		"Connected"
//	@Success		302			{string}	string					"Redirect to redirect_after"
//	@Failure		400			{object}	authsdk.ErrorResponse	"invalid_state"
//	@Failure		502			{object}	authsdk.ErrorResponse	"Code exchange failed"
//	@Router			/platforms/{platform}/callback [get]
func (h *PlatformsHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := platformFromPath(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		slogx.FromContext(ctx).Info("platform authorization declined", "platform", p, "provider_error", e)
		authsdk.ErrAccessDenied.WithDescription("the " + string(p) + " authorization was not granted").WriteError(w)
		return
	}

	st, err := h.Broker.CompleteConnect(ctx, p, q.Get("state"), q.Get("code"))
	if err != nil {
		h.router.writeBrokerError(w, r, err)
		return
	}

	if st.RedirectAfter != "" {
		http.Redirect(w, r, st.RedirectAfter, http.StatusFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"platform": string(p), "status": "connected"})
}

// HandleList godoc
//
//	@Summary		List connections
//	@Description	Lists the caller's linked platforms. Tokens are never returned.
//	@Tags			Platforms
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ListConnectionsResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/platforms [get]
func (h *PlatformsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	out, err := h.router.listConnections(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDisconnect godoc
//
//	@Summary		Disconnect a platform
//	@Description	Deactivates the link and wipes its stored tokens.
//	@Tags			Platforms
//	@Security		BearerAuth
//	@Param			platform	path	string	true	"Platform"	Enums(zoom, asana)
//	@Success		204			"Disconnected"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		404			{object}	authsdk.ErrorResponse	"Not connected"
//	@Router			/v1/platforms/{platform} [delete]
func (h *PlatformsHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	pr, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	p, ok := platformFromPath(w, r)
	if !ok {
		return
	}

	if err := h.Broker.Disconnect(r.Context(), pr.UserID, p); err != nil {
		if rr, ok := broker.IsReconnectRequired(err); ok && rr.Reason == broker.ReasonNotConnected {
			errNotConnected.WriteError(w)
			return
		}
		writeError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("platform disconnected", "platform", p)
	w.WriteHeader(http.StatusNoContent)
}
