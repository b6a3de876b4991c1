package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NordCoder/hbgate/internal/auth"
	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

func newBackend(t *testing.T, status int, ct string, body string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*s = seen{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone(), body: string(b)}
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Server", "uvicorn")
		w.Header().Set("X-Internal-Node", "backend-3")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func newRouter(t *testing.T, baseURL string, codec *auth.Codec, policy *identity.Policy) http.Handler {
	t.Helper()
	resolver := identity.NewResolver(codec, nil, identity.Config{}, nil)
	h := NewHandler(Config{BaseURL: baseURL}, NewBackend(ClientConfig{Timeout: 2 * time.Second, VerifyTLS: true}), policy, nil)
	r := chi.NewRouter()
	r.With(resolver.Middleware).Handle("/hb/v1/proxy/*", h)
	return r
}

func newCodec(t *testing.T) *auth.Codec {
	t.Helper()
	c, err := auth.NewCodec([]byte("shared-secret"))
	require.NoError(t, err)
	return c
}

func issue(t *testing.T, c *auth.Codec, cl auth.Claims) string {
	t.Helper()
	token, _, err := c.Issue(cl, 10*time.Minute)
	require.NoError(t, err)
	return token
}

func TestProxyTeacherEarnings(t *testing.T) {
	backend, got := newBackend(t, http.StatusOK, "application/json", `{"total_cents":7000}`)
	codec := newCodec(t)
	policy := identity.NewPolicy(nil, []identity.RoleRule{{Prefix: "teachers", Roles: []string{"teacher"}}})
	router := newRouter(t, backend.URL, codec, policy)

	token := issue(t, codec, auth.Claims{Subject: "42", Email: "ada@example.org", Roles: auth.Roles{"teacher"}})
	req := httptest.NewRequest(http.MethodGet, "/hb/v1/proxy/teachers/42/earnings?month=2026-09", nil)
	req.Header.Set(identity.HeaderToken, token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_cents":7000}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Server"))
	assert.Empty(t, rec.Header().Get("X-Internal-Node"))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/api/v1/teachers/42/earnings", got.path)
	assert.Equal(t, "month=2026-09", got.query)
	assert.Equal(t, "42", got.header.Get(HeaderUserID))
	assert.Equal(t, "teacher", got.header.Get(HeaderUserRoles))
	assert.Equal(t, "ada@example.org", got.header.Get(HeaderUserEmail))
	assert.Equal(t, "Bearer "+token, got.header.Get("Authorization"))
	assert.Equal(t, "application/json", got.header.Get("Accept"))
	assert.Equal(t, rec.Header().Get(HeaderRequestID), got.header.Get(HeaderRequestID))
}

func TestProxyPostBodyAndBaseWithAPISuffix(t *testing.T) {
	backend, got := newBackend(t, http.StatusCreated, "application/json", `{"id":9}`)
	codec := newCodec(t)
	router := newRouter(t, backend.URL+"/api/", codec, nil)

	req := httptest.NewRequest(http.MethodPost, "/hb/v1/proxy/api/v1/help/tickets", strings.NewReader(`{"subject":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+issue(t, codec, auth.Claims{Subject: "5"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/help/tickets", got.path)
	assert.Equal(t, `{"subject":"hi"}`, got.body)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
}

func TestProxyAuthorization(t *testing.T) {
	backend, got := newBackend(t, http.StatusOK, "application/json", `[]`)
	codec := newCodec(t)
	policy := identity.NewPolicy(
		[]string{"help/articles"},
		[]identity.RoleRule{{Prefix: "teachers", Roles: []string{"teacher"}}},
	)
	router := newRouter(t, backend.URL, codec, policy)
	student := issue(t, codec, auth.Claims{Subject: "1", Roles: auth.Roles{"student"}})

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"public listing anonymous", "help/articles", "", http.StatusOK},
		{"private anonymous", "notifications", "", http.StatusUnauthorized},
		{"invalid token", "notifications", "x.y.z", http.StatusUnauthorized},
		{"empty roles on role path", "teachers/1/earnings", issue(t, codec, auth.Claims{Subject: "1"}), http.StatusForbidden},
		{"student on role path", "teachers/1/earnings", student, http.StatusForbidden},
		{"encoded slash", "teachers%2F42/earnings", student, http.StatusBadRequest},
		{"encoded slash lower case", "teachers%2f42/earnings", student, http.StatusBadRequest},
		{"dot segment", "./teachers/42/earnings", student, http.StatusBadRequest},
		{"encoded parent segment", "x/%2e%2e/teachers/42/earnings", student, http.StatusBadRequest},
		{"parent segment", "x/../teachers/42/earnings", student, http.StatusBadRequest},
		{"encoded letters still hit the rule", "%74eachers/42/earnings", student, http.StatusForbidden},
		{"prefixed path still hits the rule", "api/v1/teachers/42/earnings", student, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			*got = seen{}
			req := httptest.NewRequest(http.MethodGet, "/hb/v1/proxy/"+tc.path, nil)
			if tc.token != "" {
				req.Header.Set(identity.HeaderToken, tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want != http.StatusOK {
				assert.Empty(t, got.method, "backend must not be called")
			} else {
				assert.Empty(t, got.header.Get(HeaderUserID))
				assert.Empty(t, got.header.Get("Authorization"))
			}
		})
	}
}

func TestProxyPassesUpstreamErrors(t *testing.T) {
	backend, _ := newBackend(t, http.StatusTooManyRequests, "application/json", `{"detail":"rate limit exceeded"}`)
	codec := newCodec(t)
	router := newRouter(t, backend.URL, codec, nil)

	req := httptest.NewRequest(http.MethodGet, "/hb/v1/proxy/notifications", nil)
	req.Header.Set(identity.HeaderToken, issue(t, codec, auth.Claims{Subject: "5"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"detail":"rate limit exceeded"}`, rec.Body.String())
}

func TestProxyMisconfigured(t *testing.T) {
	codec := newCodec(t)
	router := newRouter(t, "", codec, nil)

	req := httptest.NewRequest(http.MethodGet, "/hb/v1/proxy/notifications", nil)
	req.Header.Set(identity.HeaderToken, issue(t, codec, auth.Claims{Subject: "5"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "backend_not_configured")
}

func TestProxyTransportFailure(t *testing.T) {
	backend, _ := newBackend(t, http.StatusOK, "", "")
	url := backend.URL
	backend.Close()

	codec := newCodec(t)
	router := newRouter(t, url, codec, nil)

	req := httptest.NewRequest(http.MethodGet, "/hb/v1/proxy/notifications?limit=5", nil)
	req.Header.Set(identity.HeaderToken, issue(t, codec, auth.Claims{Subject: "5"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var m map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "upstream_unreachable", m["error"])
	assert.Equal(t, url+"/api/v1/notifications", m["target"])
	assert.NotEmpty(t, m["detail"])
	assert.NotContains(t, rec.Body.String(), "limit=5")
}

func TestProxyOpaquePassthrough(t *testing.T) {
	backend, _ := newBackend(t, http.StatusOK, "text/csv", "a,b\n1,2\n")
	codec := newCodec(t)
	router := newRouter(t, backend.URL, codec, nil)

	req := httptest.NewRequest(http.MethodGet, "/hb/v1/proxy/reports/export", nil)
	req.Header.Set(identity.HeaderToken, issue(t, codec, auth.Claims{Subject: "5"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n1,2\n", rec.Body.String())
}
