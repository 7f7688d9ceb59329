package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

// ConsentHandler serves /oauth/consent.
type ConsentHandler struct {
	ConsentService *service.ConsentService
	Sessions       *sessionCookies
}

// HandleGet describes the pending consent, or auto-approves when the user
// already granted every requested scope.
//
//	@Summary		Consent prompt
//	@Description	Returns the pending consent as JSON (HTML for browsers). If an existing grant covers the request, redirects to the client with a code.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			request_id	query		string					true	"Pending authorization request"
//	@Success		200			{object}	authsdk.ConsentPrompt	"Consent prompt"
//	@Success		302			{string}	string					"Redirect to the client or to login"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Unknown or expired request"
//	@Router			/oauth/consent [get]
func (h *ConsentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")

	user, ok := h.Sessions.current(r)
	if !ok {
		http.Redirect(w, r, authsdk.PathLogin+"?"+url.Values{"request_id": {requestID}}.Encode(), http.StatusFound)
		return
	}

	outcome, err := h.ConsentService.Evaluate(r.Context(), user.ID, requestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if outcome.RedirectURL != "" {
		http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
		return
	}

	p := outcome.Prompt
	scopes := describeScopes(p.Scopes)
	if wantsHTML(r) {
		renderPage(w, r, http.StatusOK, "consent.html", consentPage{
			Title:      "Allow access",
			RequestID:  p.RequestID,
			ClientName: p.ClientName,
			Email:      user.Email,
			Scopes:     scopes,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ConsentPrompt{
		RequestID:  p.RequestID,
		ClientID:   p.ClientID,
		ClientName: p.ClientName,
		Scopes:     scopes,
		ExpiresAt:  p.ExpiresAt,
	})
}

// HandlePost records the user's decision and redirects to the client.
//
//	@Summary		Consent decision
//	@Description	Approve issues an authorization code; deny redirects with error=access_denied. Each request can be decided once.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			request_id	formData	string					true	"Pending authorization request"
//	@Param			decision	formData	string					true	"approve or deny"	Enums(approve, deny)
//	@Success		302			{string}	string					"Redirect to the client"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Unknown, expired or already decided request"
//	@Failure		401			{object}	authsdk.ErrorResponse	"No session"
//	@Router			/oauth/consent [post]
func (h *ConsentHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	user, ok := h.Sessions.current(r)
	if !ok {
		authsdk.ErrLoginRequired.WriteError(w)
		return
	}

	var approve bool
	switch r.PostForm.Get("decision") {
	case "approve":
		approve = true
	case "deny":
	default:
		authsdk.ErrInvalidRequest.WithDescription("decision must be approve or deny").WriteError(w)
		return
	}

	redirect, err := h.ConsentService.Decide(r.Context(), user.ID, r.PostForm.Get("request_id"), approve)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

func describeScopes(scopes []string) []authsdk.ScopeDescription {
	out := make([]authsdk.ScopeDescription, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, authsdk.ScopeDescription{Name: s, Description: domain.DescribeScope(s)})
	}
	return out
}
