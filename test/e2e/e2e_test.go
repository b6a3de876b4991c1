//go:build e2e

package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cfg struct {
	GatewayBase string // http://localhost:8080
	HostSession string // raw hb_session cookie seeded into host_sessions
	WaitHealthy time.Duration
}

func loadCfg() cfg {
	return cfg{
		GatewayBase: getenv("E2E_GATEWAY_BASE", "http://localhost:8080"),
		HostSession: os.Getenv("E2E_HOST_SESSION"),
		WaitHealthy: mustParseDur(getenv("E2E_WAIT_HEALTHY", "30s")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustParseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

type sessionResp struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	APIBase   string `json:"api_base"`
	Mode      string `json:"mode"`
	User      struct {
		UserID int64    `json:"user_id"`
		Email  string   `json:"email"`
		Roles  []string `json:"roles"`
	} `json:"user"`
}

func do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func waitHealthy(t *testing.T, c cfg) {
	t.Helper()
	deadline := time.Now().Add(c.WaitHealthy)
	for time.Now().Before(deadline) {
		resp, err := http.Get(c.GatewayBase + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("gateway not healthy after %s", c.WaitHealthy)
}

func Test_HostSession_MintsTokenForProxy(t *testing.T) {
	c := loadCfg()
	if c.HostSession == "" {
		t.Skip("E2E_HOST_SESSION not set")
	}
	waitHealthy(t, c)

	req, _ := http.NewRequest(http.MethodGet, c.GatewayBase+"/hb/v1/session", nil)
	req.AddCookie(&http.Cookie{Name: "hb_session", Value: c.HostSession})
	code, body := do(t, req)
	require.Equal(t, http.StatusOK, code, string(body))

	var s sessionResp
	require.NoError(t, json.Unmarshal(body, &s))
	require.NotEmpty(t, s.Token)
	require.Greater(t, s.ExpiresAt, time.Now().Unix())
	t.Logf("minted token for user %d (%s), mode=%s", s.User.UserID, s.User.Email, s.Mode)

	req, _ = http.NewRequest(http.MethodGet, c.GatewayBase+"/hb/v1/me", nil)
	req.Header.Set("X-HB-Token", s.Token)
	code, body = do(t, req)
	require.Equal(t, http.StatusOK, code, string(body))

	if s.Mode != "proxy" {
		return
	}

	req, _ = http.NewRequest(http.MethodGet, s.APIBase+"/notifications?limit=5", nil)
	code, _ = do(t, req)
	require.Equal(t, http.StatusUnauthorized, code)

	req, _ = http.NewRequest(http.MethodGet, s.APIBase+"/notifications?limit=5", nil)
	req.Header.Set("X-HB-Token", s.Token)
	code, body = do(t, req)
	require.NotEqual(t, http.StatusUnauthorized, code, string(body))
	require.True(t, json.Valid(body), string(body))
}
