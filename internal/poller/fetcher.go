package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NordCoder/hbgate/internal/domain/notification"
	"github.com/NordCoder/hbgate/internal/identity"
)

var _ notification.Source = (*HTTPFetcher)(nil)

// StatusError is a non-2xx reply from the notifications endpoint.
type StatusError struct {
	Status     int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("notifications: status %d, retry after %s", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("notifications: status %d", e.Status)
}

type FetcherConfig struct {
	// APIBase is either the gateway proxy root (…/hb/v1/proxy) or the backend api root (…/api/v1).
	APIBase string
	// Header carries the credential; "Authorization" sends it as a bearer token.
	Header string
	Limit  int
	Now    func() time.Time
}

type HTTPFetcher struct {
	c   *http.Client
	cfg FetcherConfig
}

func NewHTTPFetcher(c *http.Client, cfg FetcherConfig) *HTTPFetcher {
	if cfg.Header == "" {
		cfg.Header = identity.HeaderToken
	}
	cfg.Limit = notification.ClampLimit(cfg.Limit)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &HTTPFetcher{c: c, cfg: cfg}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, credential string) ([]notification.Notification, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.cfg.Limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.APIBase+"/notifications?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if strings.EqualFold(f.cfg.Header, identity.HeaderAuth) {
		req.Header.Set(identity.HeaderAuth, "Bearer "+credential)
	} else {
		req.Header.Set(f.cfg.Header, credential)
	}

	resp, err := f.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{
			Status:     resp.StatusCode,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), f.cfg.Now()),
		}
	}

	var items []notification.Notification
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return items, nil
}

// maxRetryAfter bounds server hints; the controller clamps further to its rate-limit cap.
const maxRetryAfter = 24 * time.Hour

// ParseRetryAfter accepts delta-seconds or an HTTP date; anything else yields 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		if secs >= int(maxRetryAfter/time.Second) {
			return maxRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return min(d, maxRetryAfter)
		}
	}
	return 0
}
