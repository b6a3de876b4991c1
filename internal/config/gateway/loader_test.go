package gateway_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsAndFile(t *testing.T) {
	p := writeYAML(t, `
auth:
  secret: s3cret
proxy:
  base_url: https://api.example.org
  role_rules:
    - prefix: teachers
      roles: [teacher, administrator]
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "hb_session", cfg.Auth.SessionCookie)
	assert.Equal(t, ModeProxy, cfg.Proxy.Mode)
	assert.True(t, cfg.Proxy.VerifyTLS)
	assert.Equal(t, 15*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, []string{"help/articles"}, cfg.Proxy.PublicPaths)
	require.Len(t, cfg.Proxy.RoleRules, 1)
	assert.Equal(t, "teachers", cfg.Proxy.RoleRules[0].Prefix)
	assert.Equal(t, []string{"teacher", "administrator"}, cfg.Proxy.RoleRules[0].Roles)
	assert.False(t, cfg.RateLimit.Enable)
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "from-env")
	t.Setenv("PROXY_MODE", "Direct")
	t.Setenv("PROXY_BASE_URL", "https://api.example.org/api")
	t.Setenv("PROXY_VERIFY_TLS", "false")
	t.Setenv("AUTH_TOKEN_TTL", "5m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, ModeDirect, cfg.Proxy.Mode)
	assert.False(t, cfg.Proxy.VerifyTLS)
	assert.Equal(t, 5*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.IsType(t, ErrConfig(""), err)

	t.Setenv("AUTH_SECRET", "x")
	t.Setenv("PROXY_MODE", "tunnel")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy.mode")
}

func TestLoadDirectModeNeedsBaseURL(t *testing.T) {
	t.Setenv("AUTH_SECRET", "x")
	t.Setenv("PROXY_MODE", "direct")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy.base_url")
}
