package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/hbgate/internal/auth"
	domainsession "github.com/NordCoder/hbgate/internal/domain/session"
	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/NordCoder/hbgate/internal/proxy"
	"github.com/NordCoder/hbgate/internal/services/gateway/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions map[string]*domainsession.Session

func (m memSessions) FindActive(_ context.Context, hash string) (*domainsession.Session, error) {
	if s, ok := m[hash]; ok {
		return s, nil
	}
	return nil, domainsession.ErrNotFound
}

func newTestRouter(t *testing.T, backendURL string, withProxy bool) http.Handler {
	t.Helper()
	codec, err := auth.NewCodec([]byte("shared"))
	require.NoError(t, err)

	sessions := memSessions{auth.HashToken("cookie"): {
		UserID: 42, Email: "ada@example.org", Roles: []string{"teacher"}, ExpiresAt: time.Now().Add(time.Hour),
	}}
	resolver := identity.NewResolver(codec, sessions, identity.Config{SessionCookie: "hb_session"}, nil)
	ctrl := session.NewController(session.NewUseCase(codec, time.Minute), session.Opts{Mode: "proxy", APIBase: "/hb/v1/proxy"})

	d := Deps{Resolver: resolver, Session: ctrl}
	if withProxy {
		policy := identity.NewPolicy([]string{"help/articles"}, []identity.RoleRule{{Prefix: "teachers", Roles: []string{"teacher"}}})
		d.Proxy = proxy.NewHandler(proxy.Config{BaseURL: backendURL}, proxy.NewBackend(proxy.ClientConfig{Timeout: time.Second, VerifyTLS: true}), policy, nil)
	}
	return NewRouter(d)
}

func TestSessionThenProxy(t *testing.T) {
	var gotPath, gotUser, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotUser, gotAuth = r.URL.Path, r.Header.Get(proxy.HeaderUserID), r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer backend.Close()

	gw := httptest.NewServer(newTestRouter(t, backend.URL, true))
	defer gw.Close()

	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/hb/v1/session", nil)
	req.AddCookie(&http.Cookie{Name: "hb_session", Value: "cookie"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, decode(resp, &sess))
	require.NotEmpty(t, sess.Token)

	req, _ = http.NewRequest(http.MethodGet, gw.URL+"/hb/v1/proxy/teachers/42/earnings", nil)
	req.Header.Set(identity.HeaderToken, sess.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/v1/teachers/42/earnings", gotPath)
	assert.Equal(t, "42", gotUser)
	assert.Equal(t, "Bearer "+sess.Token, gotAuth)
}

func TestDirectModeHasNoProxyRoute(t *testing.T) {
	gw := httptest.NewServer(newTestRouter(t, "", false))
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/hb/v1/proxy/help/articles")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	d := Deps{
		Resolver: identity.NewResolver(nil, nil, identity.Config{}, nil),
		Session:  session.NewController(session.NewUseCase(nil, time.Minute), session.Opts{}),
		Health:   []func(context.Context) error{func(context.Context) error { return errors.New("db down") }},
	}
	rec := httptest.NewRecorder()
	NewRouter(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	d.Health = nil
	rec = httptest.NewRecorder()
	NewRouter(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
