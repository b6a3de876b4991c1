package poller_config

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

	v.SetDefault("app.name", "hb-poller")
	v.SetDefault("app.env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("metrics_addr", ":9102")

	v.SetDefault("poll.session_url", "")
	v.SetDefault("poll.session_cookie", "hb_session")
	v.SetDefault("poll.session_value", "")
	v.SetDefault("poll.token", "")
	v.SetDefault("poll.api_base", "")
	v.SetDefault("poll.header", "X-HB-Token")
	v.SetDefault("poll.limit", 50)
	v.SetDefault("poll.initial_delay", "1500ms")
	v.SetDefault("poll.visible_delay", "1s")
	v.SetDefault("poll.baseline", "2m")
	v.SetDefault("poll.failure_cap", "5m")
	v.SetDefault("poll.rate_limit_cap", "15m")
	v.SetDefault("poll.timeout", "15s")
	v.SetDefault("poll.verify_tls", true)

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
	p := c.Poll
	if p.Token == "" && (p.SessionURL == "" || p.SessionValue == "") {
		return ErrConfig("either poll.token or poll.session_url with poll.session_value is required")
	}
	if p.Token != "" && p.APIBase == "" {
		return ErrConfig("poll.api_base is required with a static poll.token")
	}
	if p.Baseline > p.FailureCap {
		return ErrConfig("poll.baseline must not exceed poll.failure_cap")
	}
	if p.FailureCap > p.RateLimitCap {
		return ErrConfig("poll.failure_cap must not exceed poll.rate_limit_cap")
	}
	return nil
}
