package http

import (
	"net/http"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

const sessionCookieName = "taskbridge_session"

// sessionCookies binds the browser cookie to server-side login sessions.
type sessionCookies struct {
	Logins *service.LoginService
	Secure bool
}

// current resolves the logged-in user, if any.
func (s *sessionCookies) current(r *http.Request) (domain.User, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, false
	}
	u, err := s.Logins.Session(r.Context(), c.Value)
	if err != nil {
		slogx.FromContext(r.Context()).Debug("session cookie rejected", "err", err)
		return domain.User{}, false
	}
	return u, true
}

func (s *sessionCookies) set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
