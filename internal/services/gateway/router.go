package gateway

import (
	"context"
	"net/http"

	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/NordCoder/hbgate/internal/obs"
	"github.com/NordCoder/hbgate/internal/services/gateway/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Log      *zap.Logger
	Resolver *identity.Resolver
	Session  *session.Controller
	// Proxy is nil in direct mode.
	Proxy     http.Handler
	RateLimit func(http.Handler) http.Handler
	Health    []func(context.Context) error
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(obs.HTTPMiddleware("hb-gateway"))
	r.Use(obs.AccessLog(log))

	r.Get("/healthz", obs.HealthHandler(d.Health...))
	r.Handle("/metrics", obs.MetricsHandler())

	r.Route("/hb/v1", func(r chi.Router) {
		r.Use(d.Resolver.Middleware)
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}
		r.Get("/session", d.Session.Session)
		r.Get("/me", d.Session.Me)
		if d.Proxy != nil {
			r.Handle("/proxy/*", d.Proxy)
		}
	})
	return r
}
