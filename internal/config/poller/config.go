package poller_config

import (
	"time"

	"github.com/NordCoder/hbgate/internal/poller"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Poll struct {
	// SessionURL is the gateway session endpoint used to mint tokens from a host session cookie.
	SessionURL    string        `mapstructure:"session_url"`
	SessionCookie string        `mapstructure:"session_cookie"`
	SessionValue  string        `mapstructure:"session_value"`
	Token         string        `mapstructure:"token"`
	APIBase       string        `mapstructure:"api_base"`
	Header        string        `mapstructure:"header"`
	Limit         int           `mapstructure:"limit"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	VisibleDelay  time.Duration `mapstructure:"visible_delay"`
	Baseline      time.Duration `mapstructure:"baseline"`
	FailureCap    time.Duration `mapstructure:"failure_cap"`
	RateLimitCap  time.Duration `mapstructure:"rate_limit_cap"`
	Timeout       time.Duration `mapstructure:"timeout"`
	VerifyTLS     bool          `mapstructure:"verify_tls"`
}

func (p Poll) AsControllerConfig() poller.Config {
	return poller.Config{
		InitialDelay: p.InitialDelay,
		VisibleDelay: p.VisibleDelay,
		Baseline:     p.Baseline,
		FailureCap:   p.FailureCap,
		RateLimitCap: p.RateLimitCap,
		FetchTimeout: p.Timeout,
	}
}

type Config struct {
	App         App    `mapstructure:"app"`
	Log         Log    `mapstructure:"log"`
	Poll        Poll   `mapstructure:"poll"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
