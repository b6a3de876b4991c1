package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrNoToken = errors.New("session endpoint returned no token")

// Grant is a token minted by the gateway session endpoint.
type Grant struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	APIBase   string `json:"api_base"`
	Mode      string `json:"mode"`
}

func (g Grant) Expires() time.Time { return time.Unix(g.ExpiresAt, 0) }

// RefreshIn is how long before expiry a new grant should be requested:
// at 80% of the remaining lifetime, never sooner than floor.
func (g Grant) RefreshIn(now time.Time, floor time.Duration) time.Duration {
	return max(g.Expires().Sub(now)*4/5, floor)
}

type SessionClient struct {
	c      *http.Client
	url    string
	cookie *http.Cookie
}

func NewSessionClient(c *http.Client, sessionURL, cookieName, cookieValue string) *SessionClient {
	return &SessionClient{
		c:      c,
		url:    sessionURL,
		cookie: &http.Cookie{Name: cookieName, Value: cookieValue},
	}
}

func (s *SessionClient) Mint(ctx context.Context) (Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Grant{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(s.cookie)

	resp, err := s.c.Do(req)
	if err != nil {
		return Grant{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Grant{}, &StatusError{Status: resp.StatusCode}
	}
	var g Grant
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&g); err != nil {
		return Grant{}, fmt.Errorf("decode session: %w", err)
	}
	if g.Token == "" {
		return Grant{}, ErrNoToken
	}
	return g, nil
}
