package gateway_config

import (
	"time"

	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/NordCoder/hbgate/internal/obs"
	pg "github.com/NordCoder/hbgate/internal/repository/postgres"
)

const (
	ModeProxy  = "proxy"
	ModeDirect = "direct"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Auth struct {
	Secret        string        `mapstructure:"secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway"`
	SessionCookie string        `mapstructure:"session_cookie"`
}

type Proxy struct {
	Mode         string              `mapstructure:"mode"`
	BaseURL      string              `mapstructure:"base_url"`
	Timeout      time.Duration       `mapstructure:"timeout"`
	VerifyTLS    bool                `mapstructure:"verify_tls"`
	MaxBodyBytes int64               `mapstructure:"max_body_bytes"`
	PublicPaths  []string            `mapstructure:"public_paths"`
	RoleRules    []identity.RoleRule `mapstructure:"role_rules"`
}

type RateLimit struct {
	Enable        bool   `mapstructure:"enable"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	PerMinute     int    `mapstructure:"per_minute"`
	Prefix        string `mapstructure:"prefix"`
}

type Config struct {
	App       App       `mapstructure:"app"`
	Server    Server    `mapstructure:"server"`
	DB        pg.Config `mapstructure:"db"`
	OTEL      OTEL      `mapstructure:"otel"`
	Log       Log       `mapstructure:"log"`
	Auth      Auth      `mapstructure:"auth"`
	Proxy     Proxy     `mapstructure:"proxy"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
