package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBody = 10 << 20

type ClientConfig struct {
	Timeout      time.Duration
	VerifyTLS    bool
	MaxBodyBytes int64
}

func NewHTTPClient(cfg ClientConfig) *http.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type Backend struct {
	c       *http.Client
	maxBody int64
}

func NewBackend(cfg ClientConfig) *Backend {
	return NewBackendWithClient(NewHTTPClient(cfg), cfg.MaxBodyBytes)
}

func NewBackendWithClient(c *http.Client, maxBody int64) *Backend {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Backend{c: c, maxBody: maxBody}
}

// Do performs one call without retries. A non-nil error means no usable response arrived.
func (b *Backend) Do(ctx context.Context, r *Request) (int, http.Header, []byte, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = r.Header.Clone()

	resp, err := b.c.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBody+1))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(data)) > b.maxBody {
		return 0, nil, nil, fmt.Errorf("upstream body exceeds %d bytes", b.maxBody)
	}
	return resp.StatusCode, resp.Header, data, nil
}
