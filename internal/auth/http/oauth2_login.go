package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// LoginHandler serves the minimal sign-in form at /oauth/login.
type LoginHandler struct {
	AuthorizeService *service.AuthorizeService
	Sessions         *sessionCookies
}

// HandleGet renders the login form.
//
//	@Summary		Login form
//	@Description	HTML sign-in form for a pending authorization request (request_id) or a local return_to path.
//	@Tags			OAuth2
//	@Produce		html
//	@Param			request_id	query		string					false	"Pending authorization request"
//	@Param			return_to	query		string					false	"Local path to continue to after sign-in"
//	@Success		200			{string}	string					"Login form"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Unknown or expired request"
//	@Router			/oauth/login [get]
func (h *LoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := loginPage{Title: "Sign in", RequestID: q.Get("request_id"), ReturnTo: localPath(q.Get("return_to"))}

	if page.RequestID != "" {
		pending, err := h.AuthorizeService.LoadPending(r.Context(), page.RequestID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		page.ClientName = pending.Client.Name
		if page.ClientName == "" {
			page.ClientName = pending.Client.ID
		}
	}

	renderPage(w, r, http.StatusOK, "login.html", page)
}

// HandlePost checks the credentials and starts a session.
//
//	@Summary		Submit login
//	@Description	Checks email, password and, for users with TOTP, the one-time code.
//	@Description	On success sets the session cookie and redirects to consent or return_to.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			request_id	formData	string					false	"Pending authorization request"
//	@Param			return_to	formData	string					false	"Local path to continue to"
//	@Param			email		formData	string					true	"Email"
//	@Param			password	formData	string					true	"Password"
//	@Param			otp			formData	string					false	"TOTP code"
//	@Success		303			{string}	string					"Redirect to consent"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Invalid credentials or one-time code required"
//	@Router			/oauth/login [post]
func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !parseForm(w, r) {
		return
	}

	requestID := r.PostForm.Get("request_id")
	returnTo := localPath(r.PostForm.Get("return_to"))
	email := strings.TrimSpace(r.PostForm.Get("email"))

	sessionID, user, err := h.Sessions.Logins.Login(ctx, email, r.PostForm.Get("password"), strings.TrimSpace(r.PostForm.Get("otp")))
	if err != nil {
		if !wantsHTML(r) {
			writeError(w, r, err)
			return
		}
		oe := toOAuth2Error(err)
		if errors.Is(err, service.ErrMFARequired) {
			oe = oe.WithDescription("Enter the code from your authenticator app.")
		}
		renderPage(w, r, oe.StatusCode, "login.html", loginPage{
			Title:     "Sign in",
			RequestID: requestID,
			ReturnTo:  returnTo,
			Email:     email,
			Error:     oe.Description,
		})
		return
	}

	slogx.FromContext(ctx).Info("user signed in", "user_id", user.ID)
	h.Sessions.set(w, sessionID)

	switch {
	case requestID != "":
		http.Redirect(w, r, authsdk.PathConsent+"?"+url.Values{"request_id": {requestID}}.Encode(), http.StatusSeeOther)
	case returnTo != "":
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_in"})
	}
}

// parseForm enforces a form-encoded body as OAuth2 requires.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return false
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return false
	}
	return true
}

// localPath returns p when it is a path on this server, else "".
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
