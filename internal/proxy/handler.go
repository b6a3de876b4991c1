package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/NordCoder/hbgate/internal/identity"
	"github.com/NordCoder/hbgate/internal/obs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Doer interface {
	Do(ctx context.Context, r *Request) (int, http.Header, []byte, error)
}

type Config struct {
	BaseURL      string
	MaxBodyBytes int64
}

var (
	mRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_requests_total",
		Help: "Proxied requests by method and response status.",
	}, []string{"method", "code"})
	mUpstream = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_upstream_duration_seconds",
		Help:    "Backend call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

type Handler struct {
	cfg     Config
	backend Doer
	policy  *identity.Policy
	log     *zap.Logger
}

func NewHandler(cfg Config, backend Doer, policy *identity.Policy, log *zap.Logger) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if policy == nil {
		policy = identity.NewPolicy(nil, nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{cfg: cfg, backend: backend, policy: policy, log: log}
}

// ServeHTTP expects the identity resolution in the request context and the
// api sub-path in the chi wildcard.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rid := r.Header.Get(HeaderRequestID)
	if rid == "" {
		rid = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, rid)
	log := obs.WithRequest(ctx, h.log, rid).With(zap.String("method", r.Method))

	resp := h.serve(ctx, r, rid, log)
	resp.Write(w)
	mRequests.WithLabelValues(r.Method, strconv.Itoa(resp.Status)).Inc()
}

func (h *Handler) serve(ctx context.Context, r *http.Request, rid string, log *zap.Logger) *Response {
	path := chi.URLParam(r, "*")
	res, _ := identity.ResolutionFromCtx(ctx)

	// the policy sees the path the backend will see after unescaping
	decoded, err := DecodePath(path)
	if err != nil {
		log.Debug("proxy path rejected", zap.String("path", path))
		return ErrorResponse(http.StatusBadRequest, "bad_path")
	}
	if err := h.policy.Authorize(SubPath(decoded), res.Identity); err != nil {
		log.Debug("proxy denied", zap.String("path", path), zap.String("reason", string(res.Reason)), zap.Error(err))
		if errors.Is(err, identity.ErrForbidden) {
			return ErrorResponse(http.StatusForbidden, "forbidden")
		}
		return ErrorResponse(http.StatusUnauthorized, "unauthenticated")
	}

	var body []byte
	if carriesBody(r.Method) && r.Body != nil {
		data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return ErrorResponse(http.StatusRequestEntityTooLarge, "body_too_large")
			}
			return ErrorResponse(http.StatusBadRequest, "unreadable_body")
		}
		body = data
	}

	out, err := BuildOutbound(h.cfg.BaseURL, Inbound{
		Path:     path,
		RawQuery: r.URL.RawQuery,
		Method:   r.Method,
		Header:   r.Header,
		Body:     body,
	}, res.Identity)
	switch {
	case errors.Is(err, ErrBackendNotConfigured):
		log.Error("proxy backend not configured")
		return Misconfigured()
	case errors.Is(err, ErrBadPath):
		return ErrorResponse(http.StatusBadRequest, "bad_path")
	case err != nil:
		log.Error("build outbound", zap.Error(err))
		return ErrorResponse(http.StatusInternalServerError, "internal")
	}
	out.Header.Set(HeaderRequestID, rid)

	start := time.Now()
	status, hdr, data, err := h.backend.Do(ctx, out)
	mUpstream.WithLabelValues(out.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("upstream call failed", zap.String("target", redactTarget(out.URL)), zap.Error(err))
		return TransportFailure(err, out.URL)
	}
	resp := Reshape(status, hdr, data)
	if resp.Kind == KindJSONFallback {
		log.Warn("upstream json did not parse", zap.Int("status", status), zap.Int("bytes", len(data)))
	}
	return resp
}
