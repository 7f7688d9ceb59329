package slogx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "test", Format: "json", Output: &buf})

	logger.Info("token issued", "refresh_token", "rt-secret", "client_id", "cli_1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, redacted, line["refresh_token"])
	require.Equal(t, "cli_1", line["client_id"])
	require.Equal(t, "test", line["service"])
}

func TestHTTPMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "test", Format: "json", Output: &buf})

	h := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Regexp(t, `^req_`, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
		require.Contains(t, buf.String(), `"req_id":"abc-123"`)
		require.Contains(t, buf.String(), `"status":418`)
	})
}

func TestHTTPMiddleware_RouteAndQuietPaths(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "test", Format: "json", Output: &buf})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /tools/{name}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	h := HTTPMiddleware(logger, "/livez")(mux)

	t.Run("health check logged at debug", func(t *testing.T) {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Empty(t, buf.String())
	})

	t.Run("route pattern and size", func(t *testing.T) {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tools/whoami", nil))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "GET /tools/{name}", line["route"])
		require.Equal(t, "/tools/whoami", line["path"])
		require.EqualValues(t, 5, line["bytes"])
	})
}
