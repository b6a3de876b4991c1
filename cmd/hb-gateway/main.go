package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NordCoder/hbgate/internal/auth"
	config "github.com/NordCoder/hbgate/internal/config/gateway"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/hb-gateway.yaml", "path to yaml config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting hb-gateway",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.String("mode", cfg.Proxy.Mode),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	codec, err := auth.NewCodec([]byte(cfg.Auth.Secret), codecOptions(cfg)...)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	rdb, err := initRedis(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	httpSrv, err := buildHTTPServer(cfg, logger, codec, db, rdb)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr := <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}

func codecOptions(cfg *config.Config) []auth.Option {
	var opts []auth.Option
	if cfg.Auth.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Auth.Issuer))
	}
	if cfg.Auth.Audience != "" {
		opts = append(opts, auth.WithAudience(cfg.Auth.Audience))
	}
	if cfg.Auth.Leeway > 0 {
		opts = append(opts, auth.WithLeeway(cfg.Auth.Leeway))
	}
	return opts
}
