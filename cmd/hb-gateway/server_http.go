package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/hbgate/internal/auth"
	config "github.com/NordCoder/hbgate/internal/config/gateway"
	"github.com/NordCoder/hbgate/internal/domain/session"
	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/NordCoder/hbgate/internal/proxy"
	"github.com/NordCoder/hbgate/internal/ratelimit"
	pg "github.com/NordCoder/hbgate/internal/repository/postgres"
	"github.com/NordCoder/hbgate/internal/services/gateway"
	sessionsvc "github.com/NordCoder/hbgate/internal/services/gateway/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const proxyRoot = "/hb/v1/proxy"

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, codec *auth.Codec, db *pg.DB, rdb *redis.Client) (*http.Server, error) {
	var sessions session.Repo
	var health []func(context.Context) error
	if db != nil {
		sessions = pg.NewSessionRepo(db)
		health = append(health, db.Ping)
	}

	resolver := identity.NewResolver(codec, sessions, identity.Config{SessionCookie: cfg.Auth.SessionCookie}, logger)

	apiBase, err := clientAPIBase(cfg)
	if err != nil {
		return nil, err
	}
	ctrl := sessionsvc.NewController(
		sessionsvc.NewUseCase(codec, cfg.Auth.TokenTTL),
		sessionsvc.Opts{Logger: logger, Mode: cfg.Proxy.Mode, APIBase: apiBase},
	)

	deps := gateway.Deps{Log: logger, Resolver: resolver, Session: ctrl, Health: health}
	if cfg.Proxy.Mode == config.ModeProxy {
		if strings.TrimSpace(cfg.Proxy.BaseURL) == "" {
			logger.Error("proxy.base_url is empty, proxied calls will answer 500")
		}
		backend := proxy.NewBackend(proxy.ClientConfig{
			Timeout:      cfg.Proxy.Timeout,
			VerifyTLS:    cfg.Proxy.VerifyTLS,
			MaxBodyBytes: cfg.Proxy.MaxBodyBytes,
		})
		if !cfg.Proxy.VerifyTLS {
			logger.Warn("backend TLS verification is disabled")
		}
		policy := identity.NewPolicy(cfg.Proxy.PublicPaths, cfg.Proxy.RoleRules)
		deps.Proxy = proxy.NewHandler(proxy.Config{BaseURL: cfg.Proxy.BaseURL, MaxBodyBytes: cfg.Proxy.MaxBodyBytes}, backend, policy, logger)
	}
	if rdb != nil {
		limiter := ratelimit.New(rdb, ratelimit.Config{PerMinute: cfg.RateLimit.PerMinute, Prefix: cfg.RateLimit.Prefix})
		deps.RateLimit = ratelimit.Middleware(limiter, logger)
	}

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gateway.NewRouter(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

// clientAPIBase is the root clients call with their token: the gateway proxy
// route in proxy mode, the backend api root in direct mode.
func clientAPIBase(cfg *config.Config) (string, error) {
	if cfg.Proxy.Mode == config.ModeDirect {
		return proxy.APIBase(cfg.Proxy.BaseURL)
	}
	return strings.TrimRight(cfg.Server.PublicURL, "/") + proxyRoot, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
