package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/NordCoder/hbgate/internal/auth"
	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Allower interface {
	Allow(ctx context.Context, subject string) (Decision, error)
}

var mDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ratelimit_decisions_total",
	Help: "Rate limit decisions: allowed, limited, or failed_open.",
}, []string{"result"})

var skipPaths = map[string]bool{"/healthz": true, "/metrics": true}

// Middleware rejects over-limit subjects with 429. Store errors let the request through.
func Middleware(l Allower, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			d, err := l.Allow(r.Context(), Subject(r))
			if err != nil {
				mDecisions.WithLabelValues("failed_open").Inc()
				log.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			if !d.Allowed {
				mDecisions.WithLabelValues("limited").Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
				return
			}
			mDecisions.WithLabelValues("allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// Subject picks the rate limit key: resolved user id, then bearer credential,
// then the first forwarded address, then X-Real-IP, then the peer address.
func Subject(r *http.Request) string {
	if id, ok := identity.FromCtx(r.Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	if tok := identity.ExtractCredential(r.Header); tok != "" {
		h := auth.HashToken(tok)
		return "tok:" + h[:16]
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return "ip:" + first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return "ip:" + rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
