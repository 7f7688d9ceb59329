package http

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type loginPage struct {
	Title      string
	RequestID  string
	ReturnTo   string
	ClientName string
	Email      string
	Error      string
}

type consentPage struct {
	Title      string
	RequestID  string
	ClientName string
	Email      string
	Scopes     []authsdk.ScopeDescription
}

// wantsHTML is true for browsers. API clients and the SDK ask for JSON.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render page", "page", name, "err", err)
	}
}
