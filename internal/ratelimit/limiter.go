package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("rate limit store unavailable")

const windowTTL = 65 * time.Second

type Config struct {
	PerMinute int
	Prefix    string
	Now       func() time.Time
}

type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter counts requests per subject in fixed one-minute windows.
type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 120
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{rdb: rdb, cfg: cfg}
}

func (l *Limiter) Allow(ctx context.Context, subject string) (Decision, error) {
	now := l.cfg.Now()
	minute := now.Unix() / 60
	key := l.cfg.Prefix + ":" + subject + ":" + strconv.FormatInt(minute, 10)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, windowTTL).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	d := Decision{
		Allowed: count <= int64(l.cfg.PerMinute),
		Count:   count,
		Limit:   int64(l.cfg.PerMinute),
	}
	if !d.Allowed {
		d.RetryAfter = 60 * time.Second
	}
	return d, nil
}
