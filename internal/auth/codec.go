package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Option func(*Codec)

func WithIssuer(iss string) Option { return func(c *Codec) { c.issuer = iss } }

func WithAudience(aud string) Option { return func(c *Codec) { c.audience = aud } }

func WithLeeway(d time.Duration) Option { return func(c *Codec) { c.leeway = d } }

func WithClock(now func() time.Time) Option { return func(c *Codec) { c.now = now } }

// Codec signs and verifies HS256 compact tokens shared between the host and the backend.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		popts = append(popts, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		popts = append(popts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		popts = append(popts, jwt.WithAudience(c.audience))
	}
	c.parser = jwt.NewParser(popts...)
	return c, nil
}

func (c *Codec) Encode(cl Claims) (string, error) {
	if strings.TrimSpace(cl.Subject) == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidClaims)
	}
	if cl.ExpiresAt <= cl.IssuedAt {
		return "", fmt.Errorf("%w: exp %d <= iat %d", ErrInvalidClaims, cl.ExpiresAt, cl.IssuedAt)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Issue stamps iat/exp from the codec clock and the configured issuer/audience, then signs.
func (c *Codec) Issue(cl Claims, ttl time.Duration) (string, *Claims, error) {
	now := c.now()
	cl.IssuedAt = now.Unix()
	cl.ExpiresAt = now.Add(ttl).Unix()
	if cl.Issuer == "" {
		cl.Issuer = c.issuer
	}
	if len(cl.Audience) == 0 && c.audience != "" {
		cl.Audience = jwt.ClaimStrings{c.audience}
	}
	token, err := c.Encode(cl)
	if err != nil {
		return "", nil, err
	}
	return token, &cl, nil
}

func (c *Codec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, &VerifyError{Code: CodeMalformed, Err: ErrEmptyToken}
	}
	var cl Claims
	if _, err := c.parser.ParseWithClaims(token, &cl, c.key); err != nil {
		return nil, classify(err)
	}
	if cl.ExpiresAt <= cl.IssuedAt {
		return nil, &VerifyError{Code: CodeInvalidClaims, Err: fmt.Errorf("%w: exp <= iat", ErrInvalidClaims)}
	}
	return &cl, nil
}

// DecodeVerified is the total form of Verify: every failure collapses to (nil, false).
func (c *Codec) DecodeVerified(token string) (*Claims, bool) {
	cl, err := c.Verify(token)
	if err != nil {
		return nil, false
	}
	return cl, true
}

func (c *Codec) key(*jwt.Token) (interface{}, error) { return c.secret, nil }

func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func RedactToken(token string) string {
	if len(token) <= 8 {
		return fmt.Sprintf("***(len=%d)", len(token))
	}
	return fmt.Sprintf("%s…(len=%d)", token[:6], len(token))
}
