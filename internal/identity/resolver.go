package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NordCoder/hbgate/internal/auth"
	"github.com/NordCoder/hbgate/internal/domain/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Reason string

const (
	ReasonOK             Reason = "ok"
	ReasonNoCredential   Reason = "no_credential"
	ReasonInvalidToken   Reason = "invalid_token"
	ReasonInvalidSubject Reason = "invalid_subject"
)

// Resolution is the outcome of Resolve. A nil Identity means unauthenticated;
// Reason says why and TokenCode carries the codec failure when a token was rejected.
type Resolution struct {
	Identity  *Identity
	Reason    Reason
	TokenCode auth.Code
}

func (r Resolution) Authenticated() bool { return r.Identity != nil }

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Config struct {
	SessionCookie string
	Now           func() time.Time
}

var mResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "identity_resolutions_total",
	Help: "Identity resolutions by source and reason.",
}, []string{"source", "reason"})

type Resolver struct {
	tokens   TokenVerifier
	sessions session.Repo
	cfg      Config
	log      *zap.Logger
}

// NewResolver builds a resolver; sessions may be nil when no host session store is wired.
func NewResolver(tokens TokenVerifier, sessions session.Repo, cfg Config, log *zap.Logger) *Resolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{tokens: tokens, sessions: sessions, cfg: cfg, log: log}
}

func (r *Resolver) Resolve(req *http.Request) Resolution {
	if id := r.fromSession(req); id != nil {
		mResolutions.WithLabelValues(string(SourceSession), string(ReasonOK)).Inc()
		return Resolution{Identity: id, Reason: ReasonOK}
	}

	res := r.fromToken(req)
	mResolutions.WithLabelValues(string(SourceToken), string(res.Reason)).Inc()
	return res
}

func (r *Resolver) fromSession(req *http.Request) *Identity {
	if r.sessions == nil || r.cfg.SessionCookie == "" {
		return nil
	}
	c, err := req.Cookie(r.cfg.SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	s, err := r.sessions.FindActive(req.Context(), auth.HashToken(c.Value))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, context.Canceled) {
			r.log.Warn("session lookup failed", zap.Error(err))
		}
		return nil
	}
	if !s.Active(r.cfg.Now()) {
		return nil
	}
	return FromSession(s)
}

func (r *Resolver) fromToken(req *http.Request) Resolution {
	token := ExtractCredential(req.Header)
	if token == "" {
		return Resolution{Reason: ReasonNoCredential}
	}
	cl, err := r.tokens.Verify(token)
	if err != nil {
		code := auth.CodeOf(err)
		r.log.Debug("token rejected",
			zap.String("code", string(code)),
			zap.String("token", auth.RedactToken(token)),
		)
		return Resolution{Reason: ReasonInvalidToken, TokenCode: code}
	}
	id, err := FromClaims(cl, token)
	if err != nil {
		r.log.Debug("token subject rejected", zap.String("sub", cl.Subject), zap.Error(err))
		return Resolution{Reason: ReasonInvalidSubject}
	}
	return Resolution{Identity: id, Reason: ReasonOK}
}

// Middleware resolves once per request and stores the result in the context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		res := r.Resolve(req)
		next.ServeHTTP(w, req.WithContext(WithResolution(req.Context(), res)))
	})
}
