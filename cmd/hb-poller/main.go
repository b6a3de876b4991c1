package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/hbgate/internal/config/poller"
	"github.com/NordCoder/hbgate/internal/obs"
	"github.com/NordCoder/hbgate/internal/poller"
	"github.com/NordCoder/hbgate/internal/proxy"
	"go.uber.org/zap"
)

const minRefresh = 30 * time.Second

func main() {
	configPath := flag.String("config", "config/hb-poller.yaml", "path to yaml config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
		Ver:    cfg.App.Version,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	client := proxy.NewHTTPClient(proxy.ClientConfig{Timeout: cfg.Poll.Timeout, VerifyTLS: cfg.Poll.VerifyTLS})

	apiBase := cfg.Poll.APIBase
	var sessions *poller.SessionClient
	var grant poller.Grant
	if cfg.Poll.Token == "" {
		sessions = poller.NewSessionClient(client, cfg.Poll.SessionURL, cfg.Poll.SessionCookie, cfg.Poll.SessionValue)
		grant, err = sessions.Mint(rootCtx)
		if err != nil {
			logger.Fatal("mint token", zap.Error(err))
		}
		if apiBase == "" {
			apiBase = grant.APIBase
		}
		logger.Info("token minted", zap.String("mode", grant.Mode), zap.Time("expires", grant.Expires()))
	}

	fetcher := poller.NewHTTPFetcher(client, poller.FetcherConfig{
		APIBase: apiBase,
		Header:  cfg.Poll.Header,
		Limit:   cfg.Poll.Limit,
	})
	ctrl := poller.New(fetcher, cfg.Poll.AsControllerConfig(), poller.WithLogger(logger))
	defer ctrl.Close()

	unmount := ctrl.Mount(poller.IndicatorFunc(func(n int) {
		logger.Info("unread notifications", zap.Int("unread", n))
	}))
	defer unmount()

	metrics := obs.BootstrapMetricsServer(cfg.MetricsAddr, func(context.Context) error { return nil }, logger)
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shCtx)
	}()

	if sessions != nil {
		ctrl.SetCredential(grant.Token)
		go refreshLoop(rootCtx, sessions, ctrl, grant, logger)
	} else {
		ctrl.SetCredential(cfg.Poll.Token)
	}

	visibility := make(chan os.Signal, 1)
	signal.Notify(visibility, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(visibility)

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown", zap.Any("state", ctrl.Snapshot()))
			return
		case sig := <-visibility:
			visible := sig == syscall.SIGUSR2
			ctrl.SetVisible(visible)
			logger.Info("visibility changed", zap.Bool("visible", visible))
		}
	}
}

// refreshLoop re-mints the token before it expires. A failed refresh keeps the
// current token and tries again after minRefresh.
func refreshLoop(ctx context.Context, s *poller.SessionClient, ctrl *poller.Controller, g poller.Grant, logger *zap.Logger) {
	wait := g.RefreshIn(time.Now(), minRefresh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		next, err := s.Mint(ctx)
		if err != nil {
			logger.Warn("token refresh", zap.Error(err))
			wait = minRefresh
			continue
		}
		ctrl.SetCredential(next.Token)
		wait = next.RefreshIn(time.Now(), minRefresh)
	}
}
