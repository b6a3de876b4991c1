package gateway_config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !strings.Contains(err.Error(), "no such file") {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetDefault("app.name", "hb-gateway")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.max_conn_idle_time", "10m")
	v.SetDefault("db.health_check_period", "30s")
	v.SetDefault("db.query_timeout", "2s")

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "hb-gateway")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "15m")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.leeway", "0s")
	v.SetDefault("auth.session_cookie", "hb_session")

	v.SetDefault("proxy.mode", ModeProxy)
	v.SetDefault("proxy.base_url", "")
	v.SetDefault("proxy.timeout", "15s")
	v.SetDefault("proxy.verify_tls", true)
	v.SetDefault("proxy.max_body_bytes", 10<<20)
	v.SetDefault("proxy.public_paths", []string{"help/articles"})

	v.SetDefault("ratelimit.enable", false)
	v.SetDefault("ratelimit.redis_addr", "localhost:6379")
	v.SetDefault("ratelimit.redis_db", 0)
	v.SetDefault("ratelimit.per_minute", 120)
	v.SetDefault("ratelimit.prefix", "rl")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return ErrConfig("auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return ErrConfig("auth.token_ttl must be positive")
	}
	c.Proxy.Mode = strings.ToLower(strings.TrimSpace(c.Proxy.Mode))
	if c.Proxy.Mode != ModeProxy && c.Proxy.Mode != ModeDirect {
		return ErrConfig(fmt.Sprintf("proxy.mode must be %q or %q, got %q", ModeProxy, ModeDirect, c.Proxy.Mode))
	}
	// proxy mode answers 500 per request instead; direct mode has nothing to advertise
	if c.Proxy.Mode == ModeDirect && strings.TrimSpace(c.Proxy.BaseURL) == "" {
		return ErrConfig("proxy.base_url is required in direct mode")
	}
	return nil
}
