package main

import (
	"context"
	"time"

	config "github.com/NordCoder/hbgate/internal/config/gateway"
	"github.com/NordCoder/hbgate/internal/obs/retry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.RateLimit.Enable {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RateLimit.RedisAddr,
		Password:     cfg.RateLimit.RedisPassword,
		DB:           cfg.RateLimit.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	err := retry.Do(ctx, func() error {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(pctx).Err()
	}, retry.StartupPolicy("redis", logger))
	if err != nil {
		// the limiter fails open, so a cold redis only costs limiting
		logger.Warn("redis unreachable at startup", zap.Error(err))
	}
	return rdb, nil
}
