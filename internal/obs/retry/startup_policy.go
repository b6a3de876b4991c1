package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// StartupPolicy retries dependency dials (database, redis) while a process boots.
func StartupPolicy(name string, log *zap.Logger) Policy {
	return Policy{
		Name:     name,
		Attempts: 5,
		Backoff:  ExpoJitter{Base: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("dependency not ready", zap.String("dep", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("dependency retries exhausted", zap.String("dep", name), zap.Error(err))
			}
		},
	}
}
