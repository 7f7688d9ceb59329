package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	principal Principal
	err       error
	header    string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, header string) (Principal, error) {
	s.header = header
	return s.principal, s.err
}

func principalEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, p.UserID, PrincipalSubject(r))
		WriteJSON(w, http.StatusOK, map[string]string{"sub": p.UserID})
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		auth := &stubAuthenticator{principal: Principal{UserID: "usr_1", ClientID: "agent"}}
		h := Chain(principalEcho(t), AuthnMiddleware(auth, nil))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "Bearer abc", auth.header)
		require.JSONEq(t, `{"sub":"usr_1"}`, rec.Body.String())
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("failure goes to the error writer", func(t *testing.T) {
		auth := &stubAuthenticator{err: errors.New("expired")}
		var got error
		onError := func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			WriteBearerChallenge(w, "taskbridge", "invalid_token", "token expired")
			w.WriteHeader(http.StatusUnauthorized)
		}
		h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run")
		}), AuthnMiddleware(auth, onError))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.EqualError(t, got, "expired")
		require.Equal(t, `Bearer realm="taskbridge", error="invalid_token", error_description="token expired"`,
			rec.Header().Get("WWW-Authenticate"))
	})
}

func TestWriteBearerChallengeBare(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBearerChallenge(rec, "taskbridge", "", "")
	require.Equal(t, `Bearer realm="taskbridge"`, rec.Header().Get("WWW-Authenticate"))
}

func TestScopeMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		mw     Middleware
		scopes []string
		want   int
	}{
		{"any matches one", RequireAnyScope("zoom.read", "asana.read"), []string{"asana.read"}, http.StatusNoContent},
		{"any matches none", RequireAnyScope("zoom.read"), []string{"openid"}, http.StatusForbidden},
		{"all present", RequireAllScopes("openid", "zoom.read"), []string{"zoom.read", "openid"}, http.StatusNoContent},
		{"all missing one", RequireAllScopes("openid", "zoom.read"), []string{"openid"}, http.StatusForbidden},
		{"no principal", RequireAnyScope("openid"), nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.scopes != nil {
				req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: "usr_1", Scopes: tt.scopes}))
			}
			rec := httptest.NewRecorder()
			Chain(ok, tt.mw).ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="insufficient_scope"`)
				require.Contains(t, rec.Body.String(), "insufficient_scope")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string, allowEmpty bool) (map[string]string, error) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var v map[string]string
		err := DecodeJSON(httptest.NewRecorder(), req, &v, allowEmpty)
		return v, err
	}

	v, err := decode(`{"code":"123456"}`, false)
	require.NoError(t, err)
	require.Equal(t, "123456", v["code"])

	v, err = decode("", true)
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = decode("", false)
	require.ErrorIs(t, err, ErrBadJSON)

	_, err = decode(`{"a":"b"} {"c":"d"}`, false)
	require.ErrorIs(t, err, ErrBadJSON)

	_, err = decode(`{"a":"`+strings.Repeat("x", MaxJSONBody)+`"}`, false)
	require.ErrorIs(t, err, ErrBadJSON)
}

func TestWriteCacheableJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCacheableJSON(rec, http.StatusOK, map[string]string{"k": "v"}, 5*time.Minute)

	require.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}
